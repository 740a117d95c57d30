package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ReportingMiddleware is HTTP middleware for agent-serving handlers. It tees
// each response the agent produces and submits it for behavioral analysis
// without blocking the caller.
//
// The handler's request body is expected to carry the user message as JSON
// ({"message": "..."} or {"user_message": "..."}); anything else is reported
// with an empty user message, which weakens the context-sensitivity checks
// but still feeds the pattern detectors.
//
// Usage with standard net/http:
//
//	mux := http.NewServeMux()
//	mux.Handle("/agent/chat", sdk.ReportingMiddleware(client, chatHandler))
//
// Usage with Gorilla Mux:
//
//	router.Use(sdk.ReportingMiddlewareFunc(client))
func ReportingMiddleware(client *Client, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userMessage string
		if r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err == nil {
				r.Body = io.NopCloser(bytes.NewReader(body))
				var msg struct {
					Message     string `json:"message"`
					UserMessage string `json:"user_message"`
				}
				if json.Unmarshal(body, &msg) == nil {
					userMessage = msg.Message
					if userMessage == "" {
						userMessage = msg.UserMessage
					}
				}
			}
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Only score successful text responses; error paths are not agent behavior.
		if rec.status >= 300 || rec.body.Len() == 0 {
			return
		}

		response := rec.body.String()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), client.config.Timeout)
			defer cancel()

			trust := 50.0
			if state, err := client.TrustState(ctx); err == nil {
				trust = state.CurrentScore
			}

			if _, err := client.Evaluate(ctx, response, userMessage, trust); err != nil {
				slog.Warn("vigil report failed", "agent_id", client.AgentID(), "err", err)
			}
		}()
	})
}

// ReportingMiddlewareFunc returns Gorilla Mux compatible middleware.
func ReportingMiddlewareFunc(client *Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ReportingMiddleware(client, next)
	}
}

// responseRecorder captures the response body while forwarding writes.
type responseRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// AuditTransport wraps an http.RoundTripper and logs every outbound call the
// agent makes, giving operators a request trail to line up against verdicts.
//
//	audited := sdk.WrapHTTPClient(vigilClient, http.DefaultClient)
type auditTransport struct {
	agentID string
	wrapped http.RoundTripper
}

// WrapHTTPClient returns an http.Client whose requests are logged under the
// agent's identity.
func WrapHTTPClient(client *Client, wrapped *http.Client) *http.Client {
	return &http.Client{
		Timeout: wrapped.Timeout,
		Transport: &auditTransport{
			agentID: client.AgentID(),
			wrapped: wrapped.Transport,
		},
	}
}

func (t *auditTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	transport := t.wrapped
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := transport.RoundTrip(req)
	if err == nil {
		slog.Info("[vigil-audit]", "agent_id", t.agentID, "method", req.Method,
			"path", req.URL.Path, "status_code", resp.StatusCode, "elapsed", time.Since(start))
	}
	return resp, err
}
