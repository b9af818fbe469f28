// Package application holds the checkout use cases and the instrumentation they share.
package application

import "context"

// UseCase is the single entry point the presentation layer calls.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Func adapts a plain function to UseCase.
type Func[C any, R any] func(ctx context.Context, cmd C) (R, error)

func (f Func[C, R]) Execute(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }
