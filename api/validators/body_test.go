package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
)

type reasonBody struct {
	Reason string `json:"reason" validate:"omitempty,max=10"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"reason":"too pricey"}`))

	var body reasonBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "too pricey", body.Reason)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"reson":"typo"}`))

	var body reasonBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestDecodeJSONBodyRejectsFailedValidation(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"reason":"far longer than the limit"}`))

	var body reasonBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}
