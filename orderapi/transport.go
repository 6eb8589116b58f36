package orderapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/storefront"
)

// loggingTransport tags every request with an id and logs its outcome.
type loggingTransport struct {
	Transport http.RoundTripper
	Logger    storefront.Logger
}

// RoundTrip implements the http.RoundTripper interface and adds logging.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", requestID)
	}
	startTime := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		t.Logger.Error("Request failed",
			"id", requestID,
			"url", req.URL.String(),
			"method", req.Method,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return resp, fmt.Errorf("http request failed: %w", err)
	}

	t.Logger.Debug("Request completed",
		"id", requestID,
		"url", req.URL.String(),
		"method", req.Method,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	return resp, nil
}
