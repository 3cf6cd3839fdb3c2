package signal

import (
	"context"
	"os"
	"os/signal"
)

// ContextCanceledCause contains a signal to pass through when the context is cancelled.
type ContextCanceledCause struct {
	Signal os.Signal
}

// NewContextCanceledCause returns a new `ContextCanceledCause` instance.
func NewContextCanceledCause(sig os.Signal) *ContextCanceledCause {
	return &ContextCanceledCause{Signal: sig}
}

// Error implements the `Error` method.
func (ContextCanceledCause) Error() string {
	return context.Canceled.Error()
}

// Unwrap implements the `Unwrap` method.
func (ContextCanceledCause) Unwrap() error {
	return context.Canceled
}

// NotifyContext returns a copy of ctx that is canceled, with the received signal as the cause,
// when one of InterruptSignals arrives. The returned stop function releases the signal handler.
func NotifyContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	if len(InterruptSignals) == 0 {
		return ctx, func() { cancel(nil) }
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, InterruptSignals...)

	go func() {
		select {
		case sig := <-sigCh:
			cancel(NewContextCanceledCause(sig))
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}
