// Package webhook triggers the external document-processing pipeline when a
// receipt is uploaded.
//
// Unlike the matcher's single-attempt oracle call, this trigger retries with
// exponential backoff: the receiving pipeline deduplicates by receipt id, so
// re-delivery is safe, and a dropped trigger would strand the receipt in
// pending forever.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Event is the payload delivered to the processing webhook
type Event struct {
	Type      string    `json:"type"`
	ReceiptID string    `json:"receipt_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventReceiptUploaded asks the pipeline to OCR a freshly uploaded receipt
const EventReceiptUploaded = "receipt.uploaded"

// Notifier posts events to an n8n-style webhook endpoint
type Notifier struct {
	url    string
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewNotifier creates a notifier for the given webhook URL with the given
// retry budget (attempts beyond the first request).
func NewNotifier(url string, maxRetries int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 8 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil // we log outcomes ourselves

	return &Notifier{
		url:    url,
		client: client,
		logger: logger,
	}
}

// NotifyReceiptUploaded delivers a receipt.uploaded event. Exhausting the
// retry budget returns an error; callers decide whether that is fatal
// (receipt registration treats it as best-effort).
func (n *Notifier) NotifyReceiptUploaded(ctx context.Context, userID, receiptID string) error {
	event := Event{
		Type:      EventReceiptUploaded,
		ReceiptID: receiptID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed after retries",
			"receipt_id", receiptID, "error", err)
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook endpoint rejected event",
			"receipt_id", receiptID, "status", resp.StatusCode)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook event delivered", "receipt_id", receiptID)
	return nil
}
