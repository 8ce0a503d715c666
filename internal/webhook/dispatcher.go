package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// EventReportProcessed is sent when an async report job finishes, successfully or not.
const EventReportProcessed = "report.processed"

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderID        = "X-Webhook-ID"
)

// Dispatcher posts signed event payloads to subscriber URLs.
type Dispatcher struct {
	httpClient *http.Client
}

type DeliveryRequest struct {
	ID      uuid.UUID
	URL     string
	Secret  string
	Event   string
	Payload []byte
}

func NewDispatcher() *Dispatcher {
	return newDispatcher(&http.Client{Timeout: 10 * time.Second})
}

func newDispatcher(client *http.Client) *Dispatcher {
	return &Dispatcher{httpClient: client}
}

// Deliver posts the payload and returns the response status. Non-2xx
// responses are reported as errors so callers can retry.
func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) (int, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return 0, fmt.Errorf("create webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderEvent, req.Event)
	httpReq.Header.Set(HeaderID, req.ID.String())
	if req.Secret != "" {
		httpReq.Header.Set(HeaderSignature, Sign(req.Payload, req.Secret))
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("webhook received non-success response", "status", resp.StatusCode, "webhook_id", req.ID)
		return resp.StatusCode, fmt.Errorf("webhook %s responded %d", req.URL, resp.StatusCode)
	}

	slog.Debug("webhook delivered", "webhook_id", req.ID, "event", req.Event, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

// Sign returns the signature header value for payload: "sha256=<hex hmac>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header in constant time.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
