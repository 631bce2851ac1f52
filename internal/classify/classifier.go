// Package classify labels SMS message texts with a zero-shot classifier
// served over HTTP. The model itself is a black box: a Hugging Face
// inference endpoint or any OpenAI-compatible chat endpoint.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

// ErrEmptyResponse is returned when a backend answers without any labels.
var ErrEmptyResponse = errors.New("classifier returned no labels")

// Classifier returns the top candidate label for each text, in order.
// Implementations must be safe for concurrent use.
type Classifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([]string, error)
}

// New builds the backend selected by cfg.Provider.
func New(cfg config.Classifier, token string) (Classifier, error) {
	switch cfg.Provider {
	case "huggingface", "":
		return NewHuggingFace(cfg, token), nil
	case "openai":
		return NewOpenAI(cfg, token), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", cfg.Provider)
	}
}
