// Package prefetch warms the detail cache for batches of scholars using a
// bounded worker pool.
package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
	"github.com/ihainan/scholar-data-proxy/pkg/resolver"
)

// Config holds warmer configuration.
type Config struct {
	// Concurrency is the number of parallel resolve workers.
	Concurrency int

	// Timeout is the per-scholar resolve budget.
	Timeout time.Duration
}

// DefaultConfig returns a conservative warmer configuration; the provider
// throttles aggressive clients.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Timeout:     60 * time.Second,
	}
}

// Failure records one scholar the warm pass could not resolve.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Report summarizes a warm pass. Requested can exceed Warmed plus Failed
// when the pass is cancelled before every scholar is attempted.
type Report struct {
	Requested int       `json:"requested"`
	Warmed    int       `json:"warmed"`
	Failed    []Failure `json:"failed,omitempty"`
}

// Warmer resolves scholar details in bulk so later requests hit the cache.
type Warmer struct {
	details *resolver.Detail
	config  Config
	logger  zerolog.Logger
}

// NewWarmer creates a warmer over the detail resolver.
func NewWarmer(details *resolver.Detail, config Config) *Warmer {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Warmer{
		details: details,
		config:  config,
		logger:  logging.NewLogger("prefetch"),
	}
}

// Warm resolves every id, sharing the caller's credentials, and returns a
// per-scholar report. A failed scholar never aborts the batch; cancelling
// ctx stops the remaining work.
func (w *Warmer) Warm(ctx context.Context, ids []string, creds aminer.Credentials, force bool) Report {
	start := time.Now()
	w.logger.Info().
		Int("scholars", len(ids)).
		Bool("force_refresh", force).
		Msg("starting cache warm pass")

	queue := make(chan string)
	failures := make(chan Failure, len(ids))
	var warmed atomic.Int64

	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(ctx, queue, failures, &warmed, creds, force)
		}()
	}
	wg.Wait()
	close(failures)

	report := Report{Requested: len(ids), Warmed: int(warmed.Load())}
	for f := range failures {
		report.Failed = append(report.Failed, f)
	}

	w.logger.Info().
		Int("warmed", report.Warmed).
		Int("failed", len(report.Failed)).
		Dur("duration", time.Since(start)).
		Msg("cache warm pass complete")
	return report
}

// worker drains the queue, resolving one scholar at a time under the
// per-scholar timeout.
func (w *Warmer) worker(ctx context.Context, queue <-chan string, failures chan<- Failure, warmed *atomic.Int64, creds aminer.Credentials, force bool) {
	for id := range queue {
		select {
		case <-ctx.Done():
			failures <- Failure{ID: id, Error: ctx.Err().Error()}
			continue
		default:
		}

		idCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		_, err := w.details.Resolve(idCtx, id, creds, force)
		cancel()

		if err != nil {
			w.logger.Warn().Str("scholar_id", id).Err(err).Msg("warm resolve failed")
			failures <- Failure{ID: id, Error: err.Error()}
			continue
		}
		warmed.Add(1)
	}
}
