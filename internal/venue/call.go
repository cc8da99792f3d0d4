package venue

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/pkg/retrier"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

// Call runs fn, the signing and sending of one request, behind the rate
// limiter and the retry policy. Every attempt is throttled with the
// endpoint's weight before fn is invoked.
func (e *Exchange) Call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	cost := e.endpoints.Cost(endpoint)
	ctx = throttle.ContextWithTag(ctx, endpoint)

	return e.retrier.Do(ctx, func(ctx context.Context) error {
		if e.enableRateLimit {
			if err := e.throttler.Throttle(ctx, cost); err != nil {
				if errors.Is(err, throttle.ErrQueueOverflow) || errors.Is(err, throttle.ErrInvalidCost) {
					e.logger.Warn("request rejected by rate limiter",
						zap.String("endpoint", endpoint), zap.Float64("cost", cost), zap.Error(err))
					if e.onReject != nil {
						e.onReject(endpoint, cost, err)
					}
				}
				return retrier.Permanent(errors.Wrapf(err, "throttle %s", endpoint))
			}
		}
		return fn(ctx)
	})
}

// CallWithData is Call for a request that returns a value.
func CallWithData[T any](ctx context.Context, e *Exchange, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Call(ctx, endpoint, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
