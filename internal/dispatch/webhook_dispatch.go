package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/hotel-car-service/internal/models"
)

// WebhookNotifier posts arrivals to the front desk endpoint. Position ticks
// are not forwarded.
type WebhookNotifier struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewWebhookNotifier(endpoint string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, Logger: logger}
}

func (w *WebhookNotifier) PositionChanged(ctx context.Context, b models.Booking) {}

func (w *WebhookNotifier) Arrived(ctx context.Context, b models.Booking) {
	if err := w.post(ctx, Message{Type: "arrived", Booking: b}); err != nil {
		w.Logger.Error("arrival webhook failed", "confirmation_number", b.ConfirmationNumber, "error", err)
	}
}

func (w *WebhookNotifier) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
