package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender posts batches as {"logs": [...], "timestamp": "..."}. Only 200
// and 201 count as delivered; it never retries.
type HTTPSender struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
	now      func() time.Time
}

func NewHTTPSender(endpoint string, headers map[string]string, timeout time.Duration) *HTTPSender {
	merged := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "applog/1.0.0",
	}
	for k, v := range headers {
		merged[k] = v
	}
	return &HTTPSender{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
		headers:  merged,
		now:      time.Now,
	}
}

type batchEnvelope struct {
	Logs      []LogEntry `json:"logs"`
	Timestamp string     `json:"timestamp"`
}

func (h *HTTPSender) Send(ctx context.Context, entries []LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	data, err := json.Marshal(batchEnvelope{
		Logs:      entries,
		Timestamp: h.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return ErrServerError("failed to marshal log entries", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(data))
	if err != nil {
		return ErrNetworkError("failed to create request", err)
	}

	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return ErrNetworkError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ErrServerError(
			fmt.Sprintf("server returned status %d", resp.StatusCode),
			fmt.Errorf("response body: %s", string(body)),
		)
	}

	return nil
}

func (h *HTTPSender) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
