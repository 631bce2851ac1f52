package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI asks a chat model to pick one candidate label per message. Any
// OpenAI-compatible endpoint works via base_url.
type OpenAI struct {
	client   *openai.Client
	model    string
	labels   []string
	template string
}

func NewOpenAI(cfg config.Classifier, token string) *OpenAI {
	clientCfg := openai.DefaultConfig(token)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.TimeoutSeconds > 0 {
		clientCfg.HTTPClient = &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		labels:   cfg.CandidateLabels,
		template: cfg.HypothesisTemplate,
	}
}

func (o *OpenAI) systemPrompt() string {
	tmpl := o.template
	if tmpl == "" {
		tmpl = "This message is {}."
	}
	return fmt.Sprintf(
		"You label SMS messages sent by a bulk messaging provider. Candidate labels: %s. "+
			"Pick the label for which the statement %q is most true. Reply with the label only.",
		strings.Join(o.labels, ", "),
		strings.ReplaceAll(tmpl, "{}", "<label>"),
	)
}

// ClassifyBatch sends one completion per text. A reply that names no
// candidate label becomes Unknown.
func (o *OpenAI) ClassifyBatch(ctx context.Context, texts []string) ([]string, error) {
	sys := o.systemPrompt()
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sys},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			Temperature: 0,
			MaxTokens:   8,
		})
		if err != nil {
			return nil, fmt.Errorf("openai completion error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}
		out = append(out, MatchLabel(resp.Choices[0].Message.Content, o.labels))
	}
	return out, nil
}

// MatchLabel maps a free-form model reply onto one of labels. An exact
// (case-insensitive) match wins; otherwise the reply must mention exactly
// one label.
func MatchLabel(reply string, labels []string) string {
	r := strings.Trim(strings.TrimSpace(reply), "\"'`.!* \n")
	for _, l := range labels {
		if strings.EqualFold(r, l) {
			return l
		}
	}

	lower := strings.ToLower(r)
	found := ""
	for _, l := range labels {
		if strings.Contains(lower, strings.ToLower(l)) {
			if found != "" {
				return domain.Unknown
			}
			found = l
		}
	}
	if found == "" {
		return domain.Unknown
	}
	return found
}
