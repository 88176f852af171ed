package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seetara/ReconBox/internal/models"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const lastRunCacheKey = "recon:last_run"

// Runner drives reconciliation passes: it selects the eligible working set,
// walks it in fixed-size batches with pacing delays, and aggregates a
// RunResult per pass. Passes never overlap; the in-flight guard is state of
// this Runner, not a package global, so separate instances don't interfere.
type Runner struct {
	orders OrderStore
	rec    *Reconciler
	rl     RateLimiter
	cache  BytesCache

	providers []string

	batchSize          int
	itemDelay          time.Duration
	batchDelay         time.Duration
	passInterval       time.Duration
	windowStartHour    int
	windowEndHour      int
	rateLimitPerMinute int64
	lastRunTTL         time.Duration

	triggerCh chan struct{}
	running   atomic.Bool

	startedAtUnixNano   int64
	lastPassUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalPasses         atomic.Int64
	totalOrders         atomic.Int64
	totalStatusUpdates  atomic.Int64
	totalCommentsAdded  atomic.Int64
	totalErrors         atomic.Int64

	lastRunMu sync.Mutex
	lastRun   *models.RunResult
}

func NewRunner(orders OrderStore, rec *Reconciler, rl RateLimiter, cache BytesCache, providers []string) *Runner {
	if len(providers) == 0 {
		providers = []string{"gaaubesi", "gaaubesi logistics", "gbl"}
	}
	return &Runner{
		orders:             orders,
		rec:                rec,
		rl:                 rl,
		cache:              cache,
		providers:          providers,
		batchSize:          10,
		itemDelay:          500 * time.Millisecond,
		batchDelay:         3 * time.Second,
		passInterval:       2 * time.Hour,
		windowStartHour:    7,
		windowEndHour:      21,
		rateLimitPerMinute: 60,
		lastRunTTL:         48 * time.Hour,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (r *Runner) WithSettings(batchSize int, itemDelay, batchDelay, passInterval time.Duration, rlPerMin int64) *Runner {
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if itemDelay > 0 {
		r.itemDelay = itemDelay
	}
	if batchDelay > 0 {
		r.batchDelay = batchDelay
	}
	if passInterval > 0 {
		r.passInterval = passInterval
	}
	if rlPerMin > 0 {
		r.rateLimitPerMinute = rlPerMin
	}
	return r
}

func (r *Runner) WithLastRunTTL(ttl time.Duration) *Runner {
	if ttl > 0 {
		r.lastRunTTL = ttl
	}
	return r
}

// WithActiveWindow restricts scheduled passes to [start, end) local hours.
// Manual triggers ignore the window. Overnight polling burns courier quota for
// no new data, so scheduled fires outside the window are skipped.
func (r *Runner) WithActiveWindow(startHour, endHour int) *Runner {
	if startHour >= 0 && startHour < 24 && endHour > startHour && endHour <= 24 {
		r.windowStartHour = startHour
		r.windowEndHour = endHour
	}
	return r
}

// Trigger requests an immediate pass (best-effort, non-blocking).
func (r *Runner) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.passInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if !r.inActiveWindow(time.Now()) {
				slog.Info("scheduled pass outside active window, skipping")
				continue
			}
			r.RunPass(ctx)
		case <-r.triggerCh:
			r.RunPass(ctx)
		}
	}
}

func (r *Runner) inActiveWindow(now time.Time) bool {
	h := now.Hour()
	return h >= r.windowStartHour && h < r.windowEndHour
}

// RunPass executes one full reconciliation pass. started=false means another
// pass was already in flight and this one was skipped (the returned result is
// then the previous pass's). A failing order never aborts the pass; only a
// failing eligibility query does.
func (r *Runner) RunPass(ctx context.Context) (res models.RunResult, started bool) {
	if !r.running.CompareAndSwap(false, true) {
		slog.Info("reconciliation pass already running, skipping trigger")
		return r.LastRun(ctx), false
	}
	defer r.running.Store(false)

	start := time.Now().UTC()
	r.lastPassUnixNano.Store(start.UnixNano())
	res = models.RunResult{Success: true, Timestamp: start}

	orders, err := r.orders.FindEligibleOrders(ctx, r.providers)
	if err != nil {
		slog.Error("find eligible orders", "error", err.Error())
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("find eligible orders: %v", err))
		res.DurationMS = time.Since(start).Milliseconds()
		r.record(ctx, res)
		return res, true
	}
	res.TotalOrders = len(orders)

	for i := 0; i < len(orders); i += r.batchSize {
		end := i + r.batchSize
		if end > len(orders) {
			end = len(orders)
		}
		for _, o := range orders[i:end] {
			if ctx.Err() != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("pass interrupted: %v", ctx.Err()))
				res.DurationMS = time.Since(start).Milliseconds()
				r.record(ctx, res)
				return res, true
			}
			r.processOrder(ctx, o, &res)
		}
		if end < len(orders) {
			sleepCtx(ctx, r.batchDelay)
		}
	}

	res.DurationMS = time.Since(start).Milliseconds()
	r.record(ctx, res)
	slog.Info("reconciliation pass finished",
		"orders", res.TotalOrders,
		"status_updates", res.StatusUpdatedCount,
		"comments_added", res.CommentsAddedCount,
		"errors", len(res.Errors),
		"duration_ms", res.DurationMS,
	)
	return res, true
}

func (r *Runner) processOrder(ctx context.Context, o *models.Order, res *models.RunResult) {
	r.waitQuota(ctx)
	out, err := r.rec.ReconcileOrderStatus(ctx, o)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("order %s: status: %v", o.ID, err))
	} else if out.Changed {
		res.StatusUpdatedCount++
	}
	sleepCtx(ctx, r.itemDelay)

	r.waitQuota(ctx)
	n, err := r.rec.SyncOrderComments(ctx, o)
	res.CommentsAddedCount += n
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("order %s: comments: %v", o.ID, err))
	}
	sleepCtx(ctx, r.itemDelay)
}

// waitQuota checks the shared per-minute courier quota before an API call.
// Exceeding it only slows the pass down; the limiter being unavailable never
// blocks reconciliation.
func (r *Runner) waitQuota(ctx context.Context) {
	if r.rl == nil || r.rateLimitPerMinute <= 0 {
		return
	}
	key := "rl:courier:" + time.Now().UTC().Format("200601021504")
	allowed, n, err := r.rl.Allow(ctx, key, r.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter", "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("courier quota exceeded", "count", n)
		sleepCtx(ctx, 500*time.Millisecond)
	}
}

func (r *Runner) record(ctx context.Context, res models.RunResult) {
	r.totalPasses.Add(1)
	r.totalOrders.Add(int64(res.TotalOrders))
	r.totalStatusUpdates.Add(int64(res.StatusUpdatedCount))
	r.totalCommentsAdded.Add(int64(res.CommentsAddedCount))
	r.totalErrors.Add(int64(len(res.Errors)))

	r.lastRunMu.Lock()
	r.lastRun = &res
	r.lastRunMu.Unlock()

	if r.cache != nil {
		b, err := json.Marshal(res)
		if err == nil {
			_ = r.cache.Set(ctx, lastRunCacheKey, b, r.lastRunTTL)
		}
	}
}

// LastRun returns the most recent pass result, falling back to the cached copy
// so the admin surface survives a restart.
func (r *Runner) LastRun(ctx context.Context) models.RunResult {
	r.lastRunMu.Lock()
	last := r.lastRun
	r.lastRunMu.Unlock()
	if last != nil {
		return *last
	}

	if r.cache != nil {
		if b, ok, err := r.cache.Get(ctx, lastRunCacheKey); err == nil && ok {
			var res models.RunResult
			if json.Unmarshal(b, &res) == nil {
				return res
			}
		}
	}
	return models.RunResult{}
}

type Stats struct {
	StartedAt          time.Time  `json:"startedAt"`
	LastPassAt         *time.Time `json:"lastPassAt,omitempty"`
	LastTriggerAt      *time.Time `json:"lastTriggerAt,omitempty"`
	TotalPasses        int64      `json:"totalPasses"`
	TotalOrders        int64      `json:"totalOrders"`
	TotalStatusUpdates int64      `json:"totalStatusUpdates"`
	TotalCommentsAdded int64      `json:"totalCommentsAdded"`
	TotalErrors        int64      `json:"totalErrors"`
	InFlight           bool       `json:"inFlight"`
}

func (r *Runner) Stats() Stats {
	st := Stats{
		StartedAt:          time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalPasses:        r.totalPasses.Load(),
		TotalOrders:        r.totalOrders.Load(),
		TotalStatusUpdates: r.totalStatusUpdates.Load(),
		TotalCommentsAdded: r.totalCommentsAdded.Load(),
		TotalErrors:        r.totalErrors.Load(),
		InFlight:           r.running.Load(),
	}
	if n := r.lastPassUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastPassAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
