package reasoning

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/retain-cli/internal/model"
)

// DefaultMaxParallel bounds in-flight aggregations per batch chunk.
const DefaultMaxParallel = 6

// WithRateLimit caps aggregations across the whole batch at perSecond.
// Zero or negative disables the limiter.
func (a *Aggregator) WithRateLimit(perSecond float64) *Aggregator {
	if perSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	} else {
		a.limiter = nil
	}
	return a
}

// CalculateBatch runs Calculate over ids in consecutive chunks of
// maxParallel, joining each chunk before starting the next. Per-item
// failures are logged and excluded; the batch never aborts. Every
// non-failing id is present in the returned map.
func (a *Aggregator) CalculateBatch(ctx context.Context, ids []string, maxParallel int, forceRefresh bool) map[string]*model.ChurnReasoningResult {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	out := make(map[string]*model.ChurnReasoningResult, len(ids))
	var mu sync.Mutex

	for start := 0; start < len(ids); start += maxParallel {
		end := min(start+maxParallel, len(ids))

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if a.limiter != nil {
					if err := a.limiter.Wait(ctx); err != nil {
						zap.L().Warn("reasoning: batch rate wait aborted",
							zap.String("employee_id", id),
							zap.Error(err),
						)
						return
					}
				}
				res, err := a.Calculate(ctx, id, forceRefresh)
				if err != nil {
					zap.L().Warn("reasoning: batch item failed",
						zap.String("employee_id", id),
						zap.Error(err),
					)
					return
				}
				mu.Lock()
				out[id] = res
				mu.Unlock()
			}(id)
		}
		wg.Wait()
	}

	zap.L().Info("reasoning: batch complete",
		zap.Int("requested", len(ids)),
		zap.Int("succeeded", len(out)),
	)
	return out
}
