package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

// HuggingFace calls a zero-shot-classification pipeline over the Hugging
// Face inference API (or a self-hosted server speaking the same protocol).
type HuggingFace struct {
	url        string
	token      string
	labels     []string
	template   string
	maxRetries int
	backoff    time.Duration
	http       *http.Client
}

func NewHuggingFace(cfg config.Classifier, token string) *HuggingFace {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFace{
		url:        strings.TrimRight(cfg.BaseURL, "/") + "/models/" + cfg.Model,
		token:      token,
		labels:     cfg.CandidateLabels,
		template:   cfg.HypothesisTemplate,
		maxRetries: cfg.MaxRetries,
		backoff:    2 * time.Second,
		http:       &http.Client{Timeout: timeout},
	}
}

type zeroShotRequest struct {
	Inputs     any            `json:"inputs"` // string or []string
	Parameters zeroShotParams `json:"parameters"`
}

type zeroShotParams struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
	MultiLabel         bool     `json:"multi_label"`
}

// zeroShotItem covers both response shapes: the pipeline's
// {sequence, labels, scores} and the router's [{label, score}].
type zeroShotItem struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Label    string    `json:"label"`
	Score    float64   `json:"score"`
	Error    string    `json:"error"`
}

// ClassifyBatch sends texts in one request. 429 and 503 (model loading)
// are retried with linear backoff.
func (h *HuggingFace) ClassifyBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var inputs any = texts
	if len(texts) == 1 {
		inputs = texts[0]
	}
	body, err := json.Marshal(zeroShotRequest{
		Inputs: inputs,
		Parameters: zeroShotParams{
			CandidateLabels:    h.labels,
			HypothesisTemplate: h.template,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface: marshal: %w", err)
	}

	for attempt := 0; ; attempt++ {
		raw, status, err := h.post(ctx, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
			if attempt >= h.maxRetries {
				return nil, fmt.Errorf("huggingface: status %d after %d attempts: %s", status, attempt+1, snippet(raw))
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.backoff * time.Duration(attempt+1)):
			}
			continue
		}
		if status < 200 || status > 299 {
			return nil, fmt.Errorf("huggingface: status %d: %s", status, snippet(raw))
		}
		return parseZeroShot(raw, len(texts))
	}
}

func (h *HuggingFace) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("huggingface: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wait-For-Model", "true")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("huggingface: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("huggingface: read body: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// parseZeroShot extracts the top label per input from any of the shapes
// the inference API returns.
func parseZeroShot(raw []byte, n int) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}

	var out []string
	switch raw[0] {
	case '{':
		var item zeroShotItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("huggingface: decode: %w", err)
		}
		if item.Error != "" {
			return nil, fmt.Errorf("huggingface: %s", item.Error)
		}
		out = []string{item.top()}

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("huggingface: decode: %w", err)
		}
		if len(elems) == 0 {
			return nil, ErrEmptyResponse
		}

		if t := bytes.TrimSpace(elems[0]); len(t) > 0 && t[0] == '[' {
			// one [{label, score}] list per input
			for _, e := range elems {
				var scored []zeroShotItem
				if err := json.Unmarshal(e, &scored); err != nil {
					return nil, fmt.Errorf("huggingface: decode: %w", err)
				}
				out = append(out, topScored(scored))
			}
			break
		}

		items := make([]zeroShotItem, len(elems))
		for i, e := range elems {
			if err := json.Unmarshal(e, &items[i]); err != nil {
				return nil, fmt.Errorf("huggingface: decode: %w", err)
			}
		}
		if items[0].Label != "" && len(items[0].Labels) == 0 {
			// a single input answered as a flat [{label, score}] list
			out = []string{topScored(items)}
			break
		}
		for _, it := range items {
			out = append(out, it.top())
		}

	default:
		return nil, fmt.Errorf("huggingface: unexpected response: %s", snippet(raw))
	}

	if len(out) != n {
		return nil, fmt.Errorf("huggingface: got %d results for %d inputs", len(out), n)
	}
	for _, l := range out {
		if l == "" {
			return nil, ErrEmptyResponse
		}
	}
	return out, nil
}

func (it zeroShotItem) top() string {
	if len(it.Labels) == 0 {
		return it.Label
	}
	if len(it.Scores) != len(it.Labels) {
		return it.Labels[0]
	}
	best := 0
	for i := range it.Scores {
		if it.Scores[i] > it.Scores[best] {
			best = i
		}
	}
	return it.Labels[best]
}

func topScored(items []zeroShotItem) string {
	best := -1
	for i := range items {
		if best < 0 || items[i].Score > items[best].Score {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return items[best].Label
}

func snippet(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
