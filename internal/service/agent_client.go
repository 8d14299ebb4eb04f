package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
)

// AgentClient talks to the AI agent backend that does the actual content
// analysis and response drafting. Prompting lives entirely on the agent
// side; this client only moves notifications across the wire.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAgentClient(baseURL string, timeout time.Duration) *AgentClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AgentClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type notificationInput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Priority string `json:"priority"`
}

type analyzeResult struct {
	ActionRequired bool `json:"action_required"`
}

type respondResult struct {
	Response string `json:"response"`
}

func input(n *model.Notification) notificationInput {
	return notificationInput{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.Content,
		Source:   string(n.Metadata.Source),
		Priority: string(n.Priority),
	}
}

// Analyze asks the agent whether the notification needs a human action.
func (c *AgentClient) Analyze(ctx context.Context, n *model.Notification) (bool, error) {
	var result analyzeResult
	if err := c.post(ctx, "/analyze", input(n), &result); err != nil {
		return false, err
	}
	return result.ActionRequired, nil
}

// Respond asks the agent to draft a response for the notification.
func (c *AgentClient) Respond(ctx context.Context, n *model.Notification) (string, error) {
	var result respondResult
	if err := c.post(ctx, "/respond", input(n), &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

func (c *AgentClient) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Internal("failed to marshal agent request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return apperrors.Internal("failed to build agent request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.External("failed to call agent service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.External(
			fmt.Sprintf("agent service returned %d", resp.StatusCode),
			fmt.Errorf("agent %s: status %d", path, resp.StatusCode),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.External("failed to decode agent response", err)
	}
	return nil
}
