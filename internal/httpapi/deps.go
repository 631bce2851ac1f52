package httpapi

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/domain"
	"github.com/edwin001-tech/misused-senders/internal/events"
	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

// RunService is the job as seen by the API.
type RunService interface {
	Run(ctx context.Context) (job.Result, error)
	Status() job.RunStatus
}

// RunLedger reads past runs.
type RunLedger interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
	ListMismatches(ctx context.Context, runID string) ([]domain.Mismatch, error)
}

type Deps struct {
	Runner RunService
	Ledger RunLedger
	Hub    *events.Hub
	Log    *zap.Logger

	CfgVal *atomic.Value // stores config.Config

	// BaseCtx bounds runs started asynchronously; it outlives requests.
	BaseCtx context.Context
}
