package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/domain"
)

// Pool fans a page of texts out to a Classifier in fixed-size chunks with
// bounded concurrency and a shared request rate.
type Pool struct {
	c           Classifier
	chunk       int
	concurrency int
	maxChars    int
	limiter     *rate.Limiter
	log         *zap.Logger
}

func NewPool(c Classifier, cfg config.Classifier, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	chunk := cfg.RequestBatchSize
	if chunk <= 0 {
		chunk = 16
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 1
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Pool{
		c:           c,
		chunk:       chunk,
		concurrency: conc,
		maxChars:    cfg.MaxChars,
		limiter:     lim,
		log:         log,
	}
}

// Classify returns one label per text, in input order. A chunk whose
// request fails is labelled Unknown and the run carries on; only context
// cancellation aborts.
func (p *Pool) Classify(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(texts); start += p.chunk {
		start, end := start, min(start+p.chunk, len(texts))
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}

			inputs := make([]string, end-start)
			for i := range inputs {
				inputs[i] = Normalize(texts[start+i], p.maxChars)
			}

			labels, err := p.c.ClassifyBatch(gctx, inputs)
			if err == nil && len(labels) != len(inputs) {
				err = fmt.Errorf("classifier returned %d labels for %d texts", len(labels), len(inputs))
			}
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				p.log.Error("batch classification failed",
					zap.Int("offset", start),
					zap.Int("size", len(inputs)),
					zap.Error(err),
				)
				for i := start; i < end; i++ {
					out[i] = domain.Unknown
				}
				return nil
			}

			for i, l := range labels {
				if l == "" {
					l = domain.Unknown
				}
				out[start+i] = l
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
