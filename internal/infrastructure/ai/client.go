package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"mindvault/internal/bootstrap/config"
	"mindvault/internal/domain/review"
	"mindvault/internal/errs"
)

// Client wraps the OpenAI API for every review service. All failures out
// of the model endpoint (timeout, 5xx, unparseable output) surface as
// transient dependency errors so the queue's backoff policy applies.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg config.AIConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// completeJSON runs one chat completion and decodes the JSON reply into out.
func (c *Client) completeJSON(ctx context.Context, system string, prompt string, out any) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return fmt.Errorf("%w: chat completion: %v", review.ErrTransientDependency, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: chat completion returned no choices", review.ErrTransientDependency)
	}

	raw := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", review.ErrTransientDependency, errs.Wrap(err, "decode model reply"))
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
