package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPJSONConfig configures an HTTPJSONBackend.
type HTTPJSONConfig struct {
	Name     string
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// HTTPJSONBackend is a generic wire Backend that POSTs a flattened JSON
// request and parses a structurally equivalent JSON response. It is the
// default backend for any provider reachable over a plain HTTP chat
// completion endpoint; concrete vendor wire formats are out of scope, so
// this speaks the same normalised shape C4 already works in.
type HTTPJSONBackend struct {
	cfg    HTTPJSONConfig
	client *http.Client
}

// NewHTTPJSONBackend constructs a backend against cfg.Endpoint.
func NewHTTPJSONBackend(cfg HTTPJSONConfig) *HTTPJSONBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &HTTPJSONBackend{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (b *HTTPJSONBackend) Name() string { return b.cfg.Name }

// SupportsPreviousResponseID is false: the generic JSON endpoint has no
// server-side conversation state, so continuation always resubmits the
// accumulated transcript.
func (b *HTTPJSONBackend) SupportsPreviousResponseID() bool { return false }

type httpJSONWireMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []httpToolCall  `json:"tool_calls,omitempty"`
}

type httpToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type httpJSONRequest struct {
	Model           string                `json:"model"`
	Instructions    string                `json:"instructions,omitempty"`
	Messages        []httpJSONWireMessage `json:"messages"`
	Tools           []httpJSONTool        `json:"tools,omitempty"`
	MaxOutputTokens int                   `json:"max_output_tokens,omitempty"`
	Temperature     float64               `json:"temperature,omitempty"`
}

type httpJSONTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type httpJSONResponse struct {
	ResponseID       string         `json:"response_id"`
	Status           string         `json:"status"`
	IncompleteReason string         `json:"incomplete_reason,omitempty"`
	Text             string         `json:"text"`
	ToolCalls        []httpToolCall `json:"tool_calls,omitempty"`
	FinishReason     string         `json:"finish_reason,omitempty"`
	Usage            Usage          `json:"usage"`
}

// Send implements Backend.
func (b *HTTPJSONBackend) Send(ctx context.Context, req WireRequest) (WireResponse, error) {
	payload := httpJSONRequest{
		Model:           b.cfg.Model,
		Instructions:    req.Instructions,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	}
	for _, m := range req.Messages {
		wm := httpJSONWireMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, httpToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		payload.Messages = append(payload.Messages, wm)
	}
	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, httpJSONTool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return WireResponse{}, fmt.Errorf("provider %s: marshal request: %w", b.cfg.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return WireResponse{}, fmt.Errorf("provider %s: build request: %w", b.cfg.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return WireResponse{}, fmt.Errorf("provider %s: request failed: %w", b.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return WireResponse{}, fmt.Errorf("provider %s: http %d", b.cfg.Name, resp.StatusCode)
	}

	var decoded httpJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return WireResponse{}, fmt.Errorf("provider %s: decode response: %w", b.cfg.Name, err)
	}

	wireResp := WireResponse{
		ResponseID:       decoded.ResponseID,
		Status:           decoded.Status,
		IncompleteReason: decoded.IncompleteReason,
		FinishReason:     decoded.FinishReason,
		Usage:            decoded.Usage,
	}
	if decoded.Status == "" {
		wireResp.Status = "complete"
	}
	if decoded.Text != "" {
		wireResp.Content = append(wireResp.Content, TextBlock{Text: decoded.Text})
	}
	for _, tc := range decoded.ToolCalls {
		block := ToolCallBlock{ID: tc.ID, Name: tc.Name, Input: tc.Input}
		wireResp.Content = append(wireResp.Content, block)
		wireResp.ToolCalls = append(wireResp.ToolCalls, block)
	}
	return wireResp, nil
}
