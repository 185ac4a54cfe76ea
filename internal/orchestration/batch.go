package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/internal/evasion/timing"
	"github.com/xmok/rednote-signer/internal/signing"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

// SignJob is one entry of a batch file.
type SignJob struct {
	ID              string `json:"id,omitempty" yaml:"id,omitempty"`
	signing.Request `yaml:",inline"`
}

type BatchContext struct {
	BatchID    string
	StartTime  time.Time
	Total      int
	Completed  int
	CancelFunc context.CancelFunc
}

// BatchSigner signs many requests on a bounded worker pool. Every worker owns
// its own signing session, so no random stream is shared between goroutines.
type BatchSigner struct {
	sessions  *fingerprinting.SessionManager
	config    models.BatchConfig
	opts      signing.Options
	userAgent string
	limiter   *timing.RateLimiter
	metrics   *utils.MetricsCollector
	logger    *logrus.Logger

	mu            sync.RWMutex
	activeBatches map[string]*BatchContext
}

func NewBatchSigner(
	sessions *fingerprinting.SessionManager,
	config models.BatchConfig,
	opts signing.Options,
	userAgent string,
	metrics *utils.MetricsCollector,
	logger *logrus.Logger,
) *BatchSigner {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &BatchSigner{
		sessions:      sessions,
		config:        config,
		opts:          opts,
		userAgent:     userAgent,
		limiter:       timing.NewRateLimiter(config.RatePerSecond, config.Burst, logger),
		metrics:       metrics,
		logger:        logger,
		activeBatches: make(map[string]*BatchContext),
	}
}

// Run signs jobs and returns one result per job, in job order. Failed jobs
// yield a failed result rather than aborting the batch; only cancellation of
// ctx (or the configured timeout) stops it early, in which case the jobs not
// yet signed are reported as failed and the context error is returned.
func (b *BatchSigner) Run(ctx context.Context, jobs []SignJob) ([]*models.SignResult, error) {
	return b.run(ctx, utils.GenerateUUID(), jobs)
}

// RunReport runs jobs and summarises the outcome.
func (b *BatchSigner) RunReport(ctx context.Context, jobs []SignJob) (*models.BatchReport, error) {
	report := &models.BatchReport{
		BatchID:   utils.GenerateUUID(),
		StartTime: time.Now(),
	}
	results, err := b.run(ctx, report.BatchID, jobs)
	if results == nil {
		return nil, err
	}
	report.EndTime = time.Now()
	report.Results = results
	report.Stats = summarise(results)
	return report, err
}

func (b *BatchSigner) run(ctx context.Context, batchID string, jobs []SignJob) ([]*models.SignResult, error) {
	results := make([]*models.SignResult, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	batch := &BatchContext{
		BatchID:    batchID,
		StartTime:  time.Now(),
		Total:      len(jobs),
		CancelFunc: cancel,
	}
	b.track(batch)
	defer b.untrack(batch)

	workers := b.config.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	pool, err := b.startWorkers(workers)
	if err != nil {
		return nil, err
	}
	defer b.stopWorkers(pool)

	b.logger.WithFields(logrus.Fields{
		"batch_id": batch.BatchID,
		"jobs":     len(jobs),
		"workers":  workers,
	}).Info("starting batch")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := b.limiter.Wait(gctx); err != nil {
				return err
			}
			signer := <-pool
			defer func() { pool <- signer }()

			res, _ := signer.SignHeaders(jobs[i].Request)
			if jobs[i].ID != "" {
				res.RequestID = jobs[i].ID
			}
			results[i] = res

			b.mu.Lock()
			batch.Completed++
			b.mu.Unlock()
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	for i, res := range results {
		if res == nil {
			results[i] = abortedResult(jobs[i], runErr)
		}
	}

	b.logger.WithFields(logrus.Fields{
		"batch_id": batch.BatchID,
		"duration": time.Since(batch.StartTime).String(),
	}).Info("batch finished")
	if runErr != nil {
		return results, fmt.Errorf("batch %s interrupted: %w", batch.BatchID, runErr)
	}
	return results, nil
}

func (b *BatchSigner) startWorkers(n int) (chan *signing.Signer, error) {
	pool := make(chan *signing.Signer, n)
	for w := 0; w < n; w++ {
		session, err := b.sessions.StartSession(nil, b.userAgent)
		if err != nil {
			b.stopWorkers(pool)
			return nil, fmt.Errorf("start worker session: %w", err)
		}
		pool <- signing.NewSigner(session, b.opts, b.metrics, b.logger)
	}
	return pool, nil
}

func (b *BatchSigner) stopWorkers(pool chan *signing.Signer) {
	close(pool)
	for signer := range pool {
		if err := b.sessions.EndSession(signer.SessionID()); err != nil {
			b.logger.WithError(err).Warn("failed to end worker session")
		}
	}
}

func (b *BatchSigner) track(batch *BatchContext) {
	b.mu.Lock()
	b.activeBatches[batch.BatchID] = batch
	b.mu.Unlock()
}

func (b *BatchSigner) untrack(batch *BatchContext) {
	b.mu.Lock()
	delete(b.activeBatches, batch.BatchID)
	b.mu.Unlock()
	batch.CancelFunc()
}

func (b *BatchSigner) CancelBatch(batchID string) error {
	b.mu.RLock()
	batch, exists := b.activeBatches[batchID]
	b.mu.RUnlock()
	if !exists {
		return fmt.Errorf("batch not found: %s", batchID)
	}
	batch.CancelFunc()
	b.logger.Infof("Batch cancelled: %s", batchID)
	return nil
}

func (b *BatchSigner) ListActiveBatches() []BatchContext {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BatchContext, 0, len(b.activeBatches))
	for _, batch := range b.activeBatches {
		out = append(out, *batch)
	}
	return out
}

func (b *BatchSigner) GetStats() map[string]interface{} {
	b.mu.RLock()
	active := len(b.activeBatches)
	b.mu.RUnlock()
	return map[string]interface{}{
		"active_batches": active,
		"workers":        b.config.Workers,
		"timeout":        b.config.Timeout.String(),
		"rate_limiter":   b.limiter.GetStats(),
	}
}

func abortedResult(job SignJob, err error) *models.SignResult {
	if err == nil {
		err = errors.New("job not run")
	}
	id := job.ID
	if id == "" {
		id = utils.GenerateUUID()
	}
	return &models.SignResult{
		RequestID: id,
		Method:    job.Method,
		URI:       job.URI,
		Status:    models.StatusFailed,
		Error:     err.Error(),
	}
}

func summarise(results []*models.SignResult) models.SignStats {
	stats := models.SignStats{TotalJobs: len(results)}
	var total time.Duration
	for _, r := range results {
		if r.Status == models.StatusSigned {
			stats.Succeeded++
			total += r.Duration
		} else {
			stats.Failed++
		}
	}
	if stats.Succeeded > 0 {
		stats.AvgDurationMs = float64(total) / float64(stats.Succeeded) / float64(time.Millisecond)
	}
	return stats
}
