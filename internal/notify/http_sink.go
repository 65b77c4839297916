package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPSink buffers notification requests and submits them to the
// notification delivery service on Flush. Queued requests survive a failed
// flush and are retried on the next one.
type HTTPSink struct {
	mu sync.Mutex

	url        string
	httpClient *http.Client
	pending    []*Request
}

var _ Sink = (*HTTPSink)(nil)

// NewHTTPSink creates a sink posting to the given notification endpoint.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Queue buffers one request for the next flush.
func (s *HTTPSink) Queue(ctx context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, req)
	return nil
}

// Flush submits everything queued so far in one POST. The buffer is only
// cleared once the delivery service has accepted the submission.
func (s *HTTPSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	body, err := json.Marshal(s.pending)
	if err != nil {
		return fmt.Errorf("failed to encode notification requests: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification sink returned status %d", resp.StatusCode)
	}

	s.pending = nil
	return nil
}
