// Ollama provider (로컬 모델, /api/chat)
//
// 환경변수:
//   - OLLAMA_BASE_URL: Ollama 서버 URL (기본 http://localhost:11434)
//   - OLLAMA_MODEL: 모델명 (기본 llama3.1:8b)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []any           `json:"tools,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:8b"
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // 로컬 모델은 느릴 수 있음
		},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Model() string {
	return p.model
}

func (p *OllamaProvider) Send(ctx context.Context, system string, turns []Turn, tools []ToolSchema) (*ModelTurn, error) {
	req := ollamaRequest{
		Model:   p.model,
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	}
	if system != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: system})
	}
	for _, turn := range turns {
		req.Messages = append(req.Messages, toOllamaMessages(turn)...)
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.InputSchema,
			},
		})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: ollama model %q not found: %s", ErrProviderFatal, p.model, string(body))
		}
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", ErrProviderTransient, resp.StatusCode, string(body))
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &ModelTurn{
		Text:         apiResp.Message.Content,
		StopReason:   "stop",
		InputTokens:  apiResp.PromptEvalCount,
		OutputTokens: apiResp.EvalCount,
	}
	for _, call := range apiResp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        uuid.NewString(), // Ollama는 call ID를 주지 않음
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	if out.HasToolCalls() {
		out.StopReason = "tool_use"
	} else if apiResp.DoneReason == "length" {
		out.StopReason = "length"
	}
	return out, nil
}

// toOllamaMessages - tool 결과를 role=tool 텍스트 메시지로 평탄화
func toOllamaMessages(turn Turn) []ollamaMessage {
	switch turn.Role {
	case RoleAssistant:
		msg := ollamaMessage{Role: "assistant", Content: turn.Text}
		for _, call := range turn.ToolCalls {
			var tc ollamaToolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Arguments
			msg.ToolCalls = append(msg.ToolCalls, tc)
		}
		return []ollamaMessage{msg}
	case RoleTool:
		msgs := make([]ollamaMessage, 0, len(turn.ToolResults))
		for _, result := range turn.ToolResults {
			content := result.Content
			if result.IsError {
				content = "tool error: " + content
			}
			msgs = append(msgs, ollamaMessage{Role: "tool", Content: content})
		}
		return msgs
	default:
		return []ollamaMessage{{Role: "user", Content: turn.Text}}
	}
}
