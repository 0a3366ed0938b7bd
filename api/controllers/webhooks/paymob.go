package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/souqly/souqly-backend/api/responses"
	"github.com/souqly/souqly-backend/internal/callbacks"
	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
	"github.com/souqly/souqly-backend/pkg/logger"
)

const maxCallbackBody = 1 << 20

// PaymobWebhook handles transaction processed callbacks from the gateway.
// The HMAC arrives as a query parameter alongside the JSON body.
func PaymobWebhook(svc callbacks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "callback service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read callback body"))
			return
		}

		signature := strings.TrimSpace(r.URL.Query().Get("hmac"))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "callback signature missing"))
			return
		}

		var payload callbacks.TransactionCallback
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback"))
			return
		}
		if payload.Type != "" && payload.Type != "TRANSACTION" {
			// Other callback families carry nothing we act on.
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleTransaction(ctx, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
