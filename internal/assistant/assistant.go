package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/hotel-car-service/internal/models"
)

// Suggestion is the decorative text merged into a new booking.
type Suggestion struct {
	ConfirmationMessage   string `json:"confirmationMessage"`
	EstimatedTripDuration string `json:"estimatedTripDuration"`
	EstimatedArrivalTime  string `json:"estimatedArrivalTime"`
}

// Client is the text generation service.
type Client interface {
	Suggest(ctx context.Context, req models.CreateRequest) (Suggestion, error)
}

// HTTPClient posts the creation request to a text generation endpoint.
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) Suggest(ctx context.Context, req models.CreateRequest) (Suggestion, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Suggestion{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(hreq)
	if err != nil {
		return Suggestion{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, fmt.Errorf("assistant status %d", resp.StatusCode)
	}
	var out Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Suggestion{}, err
	}
	if strings.TrimSpace(out.ConfirmationMessage) == "" {
		return Suggestion{}, fmt.Errorf("assistant returned no confirmation message")
	}
	return out, nil
}

// Fallback builds the confirmation text locally when the service is down.
func Fallback(req models.CreateRequest, confirmationNumber string) Suggestion {
	return Suggestion{
		ConfirmationMessage: fmt.Sprintf("Thank you, %s. Your %s (%s) from %s on %s at %s is confirmed. Confirmation number: %s.",
			req.GuestName, strings.ToLower(req.ServiceType), req.VehicleType, req.Location, req.Date, req.Time, confirmationNumber),
		EstimatedTripDuration: "approx. 15 mins",
		EstimatedArrivalTime:  "Driver details will be shared once assigned",
	}
}
