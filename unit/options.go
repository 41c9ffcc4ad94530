package unit

import "log/slog"

// Option configures a Context.
type Option func(*options)

type options struct {
	logger *slog.Logger
	policy FaultPolicy
	name   string
	thread int
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFaultPolicy sets how Run surfaces handler panics.
func WithFaultPolicy(policy FaultPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithName labels the context in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// withThread tags the context with its RunThreads worker index.
func withThread(index int) Option {
	return func(o *options) {
		o.thread = index
	}
}

func newOptions(opts []Option) options {
	o := options{policy: FaultRepanic, thread: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
