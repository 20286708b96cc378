package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// BookingDetails is the payload handed to the mail gateway for confirmation
// and reminder messages.
type BookingDetails struct {
	PatientName   string `json:"patient_name"`
	ClinicianName string `json:"clinician_name"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Kind          string `json:"kind"` // "confirmation" or "reminder"
}

// Notifier dispatches booking emails. Failures never roll back a booking;
// callers log and move on.
type Notifier interface {
	SendBookingNotice(ctx context.Context, email string, details BookingDetails) error
}

// GatewayNotifier posts to an HTTP mail gateway.
type GatewayNotifier struct {
	client *resty.Client
}

func NewGatewayNotifier(baseURL string) *GatewayNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &GatewayNotifier{client: client}
}

func (n *GatewayNotifier) SendBookingNotice(ctx context.Context, email string, details BookingDetails) error {
	body := map[string]any{
		"to":      email,
		"details": details,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/send")
	if err != nil {
		return fmt.Errorf("post booking notice: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail gateway returned %s", resp.Status())
	}
	return nil
}

// LogNotifier writes notices to the log instead of delivering them. Used in
// dev and when no gateway is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n *LogNotifier) SendBookingNotice(_ context.Context, email string, details BookingDetails) error {
	n.Log.Info().
		Str("to", email).
		Str("kind", details.Kind).
		Str("clinician", details.ClinicianName).
		Str("date", details.Date).
		Str("time", details.Time).
		Msg("booking notice (log only)")
	return nil
}
