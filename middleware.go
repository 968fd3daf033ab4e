package xroute

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xlog"
)

// StageFunc runs one pipeline stage.
type StageFunc func(ctx context.Context, op OperationType, x *Exchange) Outcome

// StageMiddleware composes concerns around every stage of a pipeline.
type StageMiddleware func(next StageFunc) StageFunc

// RecoveryStageMiddleware converts a panicking stage into a Failed outcome
// wrapping ErrStagePanic. Pipelines always install it outermost.
func RecoveryStageMiddleware() StageMiddleware {
	return func(next StageFunc) StageFunc {
		return func(ctx context.Context, op OperationType, x *Exchange) (out Outcome) {
			defer func() {
				if r := recover(); r != nil {
					out = Fail(fmt.Errorf("%w: %s: %v", ErrStagePanic, op, r))
				}
			}()
			return next(ctx, op, x)
		}
	}
}

// LoggingStageMiddleware logs every stage outcome at debug.
func LoggingStageMiddleware(l *xlog.Logger) StageMiddleware {
	return func(next StageFunc) StageFunc {
		if l == nil {
			return next
		}
		return func(ctx context.Context, op OperationType, x *Exchange) Outcome {
			start := x.Clock().Now()
			out := next(ctx, op, x)
			l.Debug().
				Str("route", x.Route()).
				Str("operation", op.String()).
				Str("outcome", out.Kind.String()).
				Dur("duration", x.Clock().Since(start)).
				Msg("xroute: stage done")
			return out
		}
	}
}

// ChainStages composes middlewares around a stage in order, so the first
// middleware is outermost.
func ChainStages(s StageFunc, mws ...StageMiddleware) StageFunc {
	wrapped := s
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
