// Gemini provider (google-genai SDK function calling)

package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) Send(ctx context.Context, system string, turns []Turn, tools []ToolSchema) (*ModelTurn, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, toGeminiContent(turn))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.InputSchema,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty gemini response", ErrProviderTransient)
	}

	out := &ModelTurn{StopReason: string(res.Candidates[0].FinishReason)}
	for _, part := range res.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	if out.HasToolCalls() {
		out.StopReason = "tool_use"
	}
	if res.UsageMetadata != nil {
		out.InputTokens = int(res.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(res.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func toGeminiContent(turn Turn) *genai.Content {
	switch turn.Role {
	case RoleAssistant:
		parts := []*genai.Part{}
		if turn.Text != "" {
			parts = append(parts, &genai.Part{Text: turn.Text})
		}
		for _, call := range turn.ToolCalls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Arguments,
			}})
		}
		return &genai.Content{Role: genai.RoleModel, Parts: parts}
	case RoleTool:
		parts := make([]*genai.Part, 0, len(turn.ToolResults))
		for _, result := range turn.ToolResults {
			response := map[string]any{"result": result.Content}
			if result.IsError {
				response = map[string]any{"error": result.Content}
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       result.CallID,
				Name:     result.Name,
				Response: response,
			}})
		}
		return &genai.Content{Role: genai.RoleUser, Parts: parts}
	default:
		return genai.NewContentFromText(turn.Text, genai.RoleUser)
	}
}

// classify - genai.APIError 코드로 재시도 가능 여부 판별
func (p *GeminiProvider) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: gemini: %s", ErrProviderFatal, apiErr.Message)
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: gemini: %s", ErrProviderTransient, apiErr.Message)
		}
		return fmt.Errorf("gemini api error %d: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: gemini: %v", ErrProviderTransient, err)
}
