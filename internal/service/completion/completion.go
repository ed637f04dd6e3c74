package completion

import (
	"context"
	"fmt"

	"aidesk/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const claudeMaxTokens = 3000

// Error classifies a failed completion dispatch, wrapping the transport or
// service-side cause. The dispatcher never retries or falls back.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("completion: %v", e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher performs single-turn calls against one configured provider,
// model, and credential. It keeps no conversation state: every Complete call
// is stateless from the service's perspective.
type Dispatcher struct {
	chatModel model.BaseChatModel
}

// NewDispatcher builds the provider-specific chat model. The caller is
// responsible for checking the credential is non-empty before dispatching.
func NewDispatcher(ctx context.Context, provider, modelName, credential string, providers map[string]config.ProviderConfig) (*Dispatcher, error) {
	provCfg, ok := providers[provider]
	if !ok {
		return nil, &Error{Err: fmt.Errorf("provider %s not configured", provider)}
	}
	if modelName == "" {
		modelName = provCfg.Model
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  credential,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: credential,
		})
		if err != nil {
			break
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    credential,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, &Error{Err: fmt.Errorf("invalid provider: %s", provider)}
	}
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("init %s chat model: %w", provider, err)}
	}

	return &Dispatcher{chatModel: chatModel}, nil
}

// Complete sends a single-turn request and returns the generated text
// verbatim. The prompt is the entire request; no transcript is replayed.
func (d *Dispatcher) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := d.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", &Error{Err: err}
	}
	return resp.Content, nil
}
