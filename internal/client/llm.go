// LLM provider 어댑터 공통 정의
//
// Agent 루프는 LLMProvider 인터페이스에만 의존하고,
// 요청 포맷/인증/에러 분류는 provider 구현체가 각자 책임진다.
//
// 에러 분류:
//   - ErrProviderTransient: rate limit, 연결 실패 (재시도 대상)
//   - ErrProviderFatal: 인증 실패 등 (즉시 failed 리포트)

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/infra-rca/backend/internal/config"
)

var (
	ErrProviderTransient = errors.New("transient provider error")
	ErrProviderFatal     = errors.New("fatal provider error")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall - 모델이 요청한 도구 호출
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult - 도구 실행 결과 (실패도 대화로 되돌려보냄)
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Turn - 대화 로그의 한 항목
//
// Role별 사용 필드:
//   - user: Text
//   - assistant: Text, ToolCalls
//   - tool: ToolResults
type Turn struct {
	Role        string
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ModelTurn - provider 응답의 공통 표현
type ModelTurn struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
}

func (t *ModelTurn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// ToolSchema - provider에 전달되는 도구 정의
// InputSchema는 JSON Schema object (provider별 포맷으로 변환됨)
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// LLMProvider - 멀티턴 대화 1회 전송
type LLMProvider interface {
	Name() string
	Model() string
	Send(ctx context.Context, system string, turns []Turn, tools []ToolSchema) (*ModelTurn, error)
}

// NewLLMProvider - 설정에 따라 provider 구현체 선택
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("AI_API_KEY is required for gemini provider")
		}
		return NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic provider")
		}
		return NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicModel), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (available: gemini, anthropic, ollama)", cfg.Provider)
	}
}
