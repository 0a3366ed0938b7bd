package paymob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/souqly/souqly-backend/pkg/config"
	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
	"github.com/souqly/souqly-backend/pkg/logger"
)

const (
	intentionPath = "/v1/intention/"
	refundPath    = "/api/acceptance/void_refund/refund"
	iframePath    = "/api/acceptance/iframes"
	checkoutPath  = "/unifiedcheckout/"
)

var (
	errSecretKeyRequired  = errors.New("paymob secret key is required")
	errPublicKeyRequired  = errors.New("paymob public key is required")
	errHMACSecretRequired = errors.New("paymob hmac secret is required")
	errLoggerRequired     = errors.New("paymob logger is required")
)

// Client exposes Paymob primitives with centralized auth, logging, and error
// mapping. Paymob ships no Go SDK, so calls go over plain HTTP.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	secretKey         string
	publicKey         string
	hmacSecret        string
	iframeID          string
	cardIntegrationID int
	logger            *logger.Logger
}

// NewClient initializes the Paymob wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaymobConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errSecretKeyRequired
	}
	if strings.TrimSpace(cfg.PublicKey) == "" {
		return nil, errPublicKeyRequired
	}
	if strings.TrimSpace(cfg.HMACSecret) == "" {
		return nil, errHMACSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient:        &http.Client{Timeout: timeout},
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:         strings.TrimSpace(cfg.SecretKey),
		publicKey:         strings.TrimSpace(cfg.PublicKey),
		hmacSecret:        strings.TrimSpace(cfg.HMACSecret),
		iframeID:          strings.TrimSpace(cfg.IframeID),
		cardIntegrationID: cfg.CardIntegrationID,
		logger:            logg,
	}

	logg.Info(ctx, "paymob client initialized")
	return c, nil
}

// CreateIntent registers a payment intention for the given amount and line items.
func (c *Client) CreateIntent(ctx context.Context, params IntentCreateParams) (*Intent, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent params")
	}

	body := params.toRequest(c.cardIntegrationID)
	c.log(ctx, "request", "create_intent", map[string]any{
		"amount_cents": params.AmountCents,
		"currency":     params.Currency,
		"items":        len(params.Items),
	})

	var resp intentResponse
	if err := c.post(ctx, intentionPath, body, &resp); err != nil {
		c.log(ctx, "error", "create_intent", map[string]any{"error": err.Error()})
		return nil, err
	}

	intent := &Intent{
		ID:           resp.ID,
		ClientSecret: resp.ClientSecret,
	}
	if len(resp.PaymentKeys) > 0 {
		intent.PaymentKey = resp.PaymentKeys[0].Key
	}

	c.log(ctx, "response", "create_intent", map[string]any{"intent_id": intent.ID})
	return intent, nil
}

// Refund reverses a captured transaction through the void/refund endpoint.
func (c *Client) Refund(ctx context.Context, transactionID string, amountCents int64) (*RefundResult, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	body := map[string]any{
		"transaction_id": transactionID,
		"amount_cents":   amountCents,
	}
	c.log(ctx, "request", "refund", map[string]any{
		"transaction_id": transactionID,
		"amount_cents":   amountCents,
	})

	var resp refundResponse
	if err := c.post(ctx, refundPath, body, &resp); err != nil {
		c.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	result := &RefundResult{
		TransactionID: resp.ID.String(),
		Success:       resp.Success,
	}
	if !result.Success {
		return result, pkgerrors.New(pkgerrors.CodeDependency, "gateway declined refund")
	}

	c.log(ctx, "response", "refund", map[string]any{"refund_txn_id": result.TransactionID})
	return result, nil
}

// CheckoutURL builds the hosted unified checkout redirect for a client secret.
func (c *Client) CheckoutURL(clientSecret string) string {
	q := url.Values{}
	q.Set("publicKey", c.publicKey)
	q.Set("clientSecret", clientSecret)
	return fmt.Sprintf("%s%s?%s", c.baseURL, checkoutPath, q.Encode())
}

// IframeURL builds the embedded iframe URL for a payment key.
func (c *Client) IframeURL(paymentKey string) string {
	if c.iframeID == "" || paymentKey == "" {
		return ""
	}
	q := url.Values{}
	q.Set("payment_token", paymentKey)
	return fmt.Sprintf("%s%s/%s?%s", c.baseURL, iframePath, c.iframeID, q.Encode())
}

// VerifySignature checks a webhook HMAC against the concatenated transaction
// fields Paymob signs, in its documented order.
func (c *Client) VerifySignature(fields TransactionHMACFields, signature string) bool {
	if strings.TrimSpace(signature) == "" {
		return false
	}
	expected := c.computeHMAC(fields.concatenated())
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func (c *Client) computeHMAC(message string) string {
	mac := hmac.New(sha512.New, []byte(c.hmacSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment gateway rejected request").
			WithDetails(map[string]any{
				"status": resp.StatusCode,
				"body":   truncate(string(raw), 512),
			})
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func (c *Client) log(ctx context.Context, stage, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"gateway": "paymob", "stage": stage, "operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	ctx = c.logger.WithFields(ctx, merged)
	c.logger.Info(ctx, "paymob."+operation)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
