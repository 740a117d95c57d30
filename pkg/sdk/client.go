// Package sdk provides the Vigil client library for AI agent platforms.
//
// This is the library a platform embeds next to its agent runtime to route
// every agent response through the behavioral gaming detector.
//
// Two integration patterns:
//
//  1. Direct: client.Evaluate(ctx, response, userMessage, trust) — submit one exchange
//  2. Middleware: sdk.ReportingMiddleware(client, handler) — tap an agent-serving HTTP handler
//
// Quick Start:
//
//	client := sdk.NewClient(sdk.Config{
//	    BaseURL: "http://localhost:8080",
//	    AgentID: "support-agent-01",
//	})
//
//	result, err := client.Evaluate(ctx, response, userMessage, trustScore)
//	if result.IsGaming {
//	    // Quarantine the agent, surface result.Recommendations to operators
//	}
//	if result.Challenge != nil {
//	    // The agent must answer result.Challenge.Prompt before the timeout
//	}
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds the Vigil SDK configuration.
type Config struct {
	// BaseURL is the Vigil API endpoint (required)
	// Examples: "https://vigil.yourcompany.com", "http://localhost:8080"
	BaseURL string

	// AgentID identifies this specific AI agent instance.
	// Auto-generated if empty.
	AgentID string

	// Timeout for evaluation calls (default 30s)
	Timeout time.Duration

	// OnFlagged is called when an evaluation comes back with a gaming verdict
	OnFlagged func(result *EvaluationResult)

	// OnChallenge is called when an evaluation issues a verification challenge
	OnChallenge func(ch *Challenge)
}

// Client is the Vigil SDK client. One client serves one agent identity.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Vigil SDK client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AgentID == "" {
		cfg.AgentID = fmt.Sprintf("agent-%d", time.Now().UnixNano())
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// AgentID returns the agent identity this client reports under.
func (c *Client) AgentID() string {
	return c.config.AgentID
}

// Evaluate submits one agent exchange for behavioral analysis and returns
// the verdict. This is the primary integration point — call it after every
// agent turn you want scored.
//
// trustScore is the platform's current trust score for the agent (0-100);
// Vigil correlates it against the agent's affect and response patterns.
func (c *Client) Evaluate(ctx context.Context, response, userMessage string, trustScore float64) (*EvaluationResult, error) {
	req := &EvaluationRequest{
		AgentID:     c.config.AgentID,
		Response:    response,
		UserMessage: userMessage,
		TrustScore:  trustScore,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("vigil-sdk: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.config.BaseURL+"/api/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vigil-sdk: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Agent-ID", c.config.AgentID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vigil-sdk: evaluation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vigil-sdk: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vigil-sdk: evaluation rejected (%d): %s", resp.StatusCode, respBody)
	}

	var result EvaluationResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("vigil-sdk: failed to parse response: %w", err)
	}

	if result.IsGaming && c.config.OnFlagged != nil {
		c.config.OnFlagged(&result)
	}
	if result.Challenge != nil && c.config.OnChallenge != nil {
		c.config.OnChallenge(result.Challenge)
	}

	return &result, nil
}

// TrustState retrieves the agent's server-side trust record, including the
// audit history of decay, penalty, and recovery events.
func (c *Client) TrustState(ctx context.Context) (*TrustState, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/trust/%s", c.config.BaseURL, c.config.AgentID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("vigil-sdk: agent %s has no trust state yet", c.config.AgentID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vigil-sdk: trust lookup failed (%d)", resp.StatusCode)
	}

	var state TrustState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ActiveChallenges lists the verification challenges currently pending
// against this agent. An agent with pending challenges should answer them
// before its next substantive turn.
func (c *Client) ActiveChallenges(ctx context.Context) ([]Challenge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/challenges/%s", c.config.BaseURL, c.config.AgentID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vigil-sdk: challenge lookup failed (%d)", resp.StatusCode)
	}

	var payload struct {
		Challenges []Challenge `json:"challenges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Challenges, nil
}

// RespondToChallenge submits the agent's answer to a pending challenge and
// returns the graded outcome. The challenge is terminal after this call
// regardless of pass or fail.
func (c *Client) RespondToChallenge(ctx context.Context, challengeID, response string) (*ChallengeOutcome, error) {
	body, err := json.Marshal(map[string]string{"response": response})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/challenges/%s/%s/respond", c.config.BaseURL, c.config.AgentID, challengeID),
		bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vigil-sdk: challenge response failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("vigil-sdk: challenge %s not found or expired", challengeID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vigil-sdk: challenge response rejected (%d)", resp.StatusCode)
	}

	var outcome ChallengeOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}
