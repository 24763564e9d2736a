package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/armada-chat/armada/config"
)

// Request carries one agent invocation.
type Request struct {
	Agent  AgentType `json:"agent"`
	Prompt string    `json:"prompt"`
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

// Runner executes an agent prompt and returns the reply text. The agent
// backend is a black box; failures surface as errors and become ai_error
// events upstream.
type Runner interface {
	Run(ctx context.Context, req *Request) (string, error)
}

// HTTPRunner calls an external agent service.
type HTTPRunner struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPRunner(cfg *config.AgentsConfig) *HTTPRunner {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRunner{
		url:    cfg.RunnerURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRunner) Run(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to serialize agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent service returned status %d", resp.StatusCode)
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode agent reply: %w", err)
	}
	return out.Reply, nil
}

// StubRunner returns canned replies; tests and broker-less deployments
// use it in place of the HTTP runner.
type StubRunner struct {
	Reply string
	Err   error
	Calls []*Request
}

func (s *StubRunner) Run(_ context.Context, req *Request) (string, error) {
	s.Calls = append(s.Calls, req)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}
