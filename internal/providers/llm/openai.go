package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/pkg/log"
)

// OpenAI classifies user messages into tool envelopes via chat completion.
// Any failure mode (timeout, transport, malformed JSON, unknown tool) comes
// back wrapped in core.ErrClassifierUnavailable.
type OpenAI struct {
	client *openai.Client
	cfg    *config.OpenAIConfig
	enc    *tiktoken.Tiktoken
}

func NewOpenAI(cfg *config.OpenAIConfig) (*OpenAI, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		enc:    enc,
	}, nil
}

type wireResponse struct {
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	Confidence float64        `json:"confidence"`
}

func (o *OpenAI) Classify(ctx context.Context, req core.ClassifyRequest) (core.Classified, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	messages := o.buildMessages(req)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return core.Classified{}, fmt.Errorf("%w: %v", core.ErrClassifierUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return core.Classified{}, fmt.Errorf("%w: empty completion", core.ErrClassifierUnavailable)
	}

	raw := extractJSON(resp.Choices[0].Message.Content)
	if raw == "" {
		return core.Classified{}, fmt.Errorf("%w: no JSON object in completion", core.ErrClassifierUnavailable)
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return core.Classified{}, fmt.Errorf("%w: malformed JSON: %v", core.ErrClassifierUnavailable, err)
	}

	intent, err := core.IntentEnvelope{Tool: wire.Tool, Params: wire.Params}.Decode()
	if err != nil {
		return core.Classified{}, fmt.Errorf("%w: %v", core.ErrClassifierUnavailable, err)
	}

	log.FromCtx(ctx).Debug().
		Str("tool", wire.Tool).
		Float64("confidence", wire.Confidence).
		Msg("classifier response")

	return core.Classified{
		Intent:     intent,
		Source:     core.IntentFromAI,
		Confidence: wire.Confidence,
	}, nil
}

func (o *OpenAI) buildMessages(req core.ClassifyRequest) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}

	if cx := buildContext(req); cx != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: cx,
		})
	}

	for _, t := range o.budgetedHistory(req.History) {
		role := openai.ChatMessageRoleUser
		if t.Role == core.RoleBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})
	return messages
}

// budgetedHistory keeps the most recent turns that fit the token budget.
func (o *OpenAI) budgetedHistory(history []core.Turn) []core.Turn {
	budget := o.cfg.MaxHistoryTokens
	kept := make([]core.Turn, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		n := len(o.enc.Encode(history[i].Content, nil, nil))
		if n > budget {
			break
		}
		budget -= n
		kept = append(kept, history[i])
	}
	// reverse back into chronological order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// extractJSON returns the outermost JSON object in a completion that may be
// wrapped in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
