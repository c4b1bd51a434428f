package aicf

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ProviderDispatcher performs the actual off-chain RPC call to a
// provider for an assigned job, returning the raw result bytes. Timeouts
// are the caller's responsibility via ctx (spec.md §5: "every external
// call... carries a deadline").
type ProviderDispatcher interface {
	Dispatch(ctx context.Context, providerID string, job *Job) ([]byte, error)
}

// WorkerPoolConfig bounds concurrency and per-provider request rate.
type WorkerPoolConfig struct {
	Concurrency       int
	PerProviderRPS    float64
	PerProviderBurst  int
	DispatchTimeout   time.Duration
}

// DefaultWorkerPoolConfig is a conservative devnet default.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Concurrency:      8,
		PerProviderRPS:   2,
		PerProviderBurst: 4,
		DispatchTimeout:  10 * time.Second,
	}
}

// WorkerPool drains Assigned jobs from a Queue, dispatches them to
// providers via a ProviderDispatcher under an errgroup-bounded fan-out,
// and resolves each into Completed/FailedDeadlineMiss. Per-provider
// throttling uses a token-bucket rate.Limiter so one slow/greedy
// provider cannot starve dispatch capacity for the rest.
type WorkerPool struct {
	cfg      WorkerPoolConfig
	queue    *Queue
	registry *Registry
	dispatch ProviderDispatcher

	limiters map[string]*rate.Limiter
	rrIdx    int
}

// NewWorkerPool constructs a pool bound to queue, registry (for provider
// selection) and dispatcher.
func NewWorkerPool(cfg WorkerPoolConfig, queue *Queue, registry *Registry, dispatch ProviderDispatcher) *WorkerPool {
	return &WorkerPool{
		cfg:      cfg,
		queue:    queue,
		registry: registry,
		dispatch: dispatch,
		limiters: make(map[string]*rate.Limiter),
	}
}

// nextProvider round-robins over currently Active providers.
func (p *WorkerPool) nextProvider() (string, bool) {
	all := p.registry.List()
	var active []string
	for _, prov := range all {
		if prov.Status == ProviderActive {
			active = append(active, prov.ID)
		}
	}
	if len(active) == 0 {
		return "", false
	}
	p.rrIdx = (p.rrIdx + 1) % len(active)
	return active[p.rrIdx], true
}

func (p *WorkerPool) limiterFor(providerID string) *rate.Limiter {
	l, ok := p.limiters[providerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.cfg.PerProviderRPS), p.cfg.PerProviderBurst)
		p.limiters[providerID] = l
	}
	return l
}

// RunOnce assigns and dispatches up to cfg.Concurrency jobs concurrently,
// blocking until they all resolve or ctx is cancelled. Intended to be
// called in a loop by the caller's scheduling goroutine.
func (p *WorkerPool) RunOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	dispatched := 0
	for dispatched < p.cfg.Concurrency {
		providerID, ok := p.nextProvider()
		if !ok {
			break
		}
		job, err := p.queue.Assign(providerID)
		if err != nil {
			return err
		}
		if job == nil {
			break
		}
		dispatched++
		g.Go(func() error {
			return p.runOne(gctx, job)
		})
	}

	return g.Wait()
}

func (p *WorkerPool) runOne(ctx context.Context, job *Job) error {
	limiter := p.limiterFor(job.AssignedProvider)
	if err := limiter.Wait(ctx); err != nil {
		log.Debug("aicf: provider throttle wait aborted", "job", job.ID.Hex(), "err", err)
		return p.queue.FailDeadlineMiss(job.ID)
	}

	dctx := ctx
	var cancel context.CancelFunc
	if p.cfg.DispatchTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, p.cfg.DispatchTimeout)
		defer cancel()
	}

	result, err := p.dispatch.Dispatch(dctx, job.AssignedProvider, job)
	if err != nil {
		if errors.Is(dctx.Err(), context.DeadlineExceeded) {
			log.Warn("aicf: job dispatch deadline missed", "job", job.ID.Hex(), "provider", job.AssignedProvider)
			return p.queue.FailDeadlineMiss(job.ID)
		}
		log.Warn("aicf: job dispatch failed", "job", job.ID.Hex(), "provider", job.AssignedProvider, "err", err)
		return p.queue.FailDeadlineMiss(job.ID)
	}

	return p.queue.Complete(job.ID, result, time.Now().Unix())
}
