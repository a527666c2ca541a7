package readback

import (
	"log/slog"

	"github.com/gogpu/readback/internal/hostmem"
)

// Option configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Defaults: pooled host buffers, package logger
//	e := readback.New(dev)
//
//	// Dedicated logger, keep at most 2 spare buffers per size class
//	e := readback.New(dev, readback.WithLogger(l), readback.WithPoolLimit(2))
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	logger    *slog.Logger
	poolLimit int
	alloc     hostmem.Allocator
}

// defaultPoolLimit is the number of spare host buffers kept per size class.
const defaultPoolLimit = 8

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		logger:    nil, // package logger
		poolLimit: defaultPoolLimit,
	}
}

// WithLogger sets a logger for this engine only. Without it the engine
// logs through the package logger configured by SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPoolLimit sets how many freed host buffers are kept per size class
// for reuse. Zero keeps every buffer; use with caution for large images.
func WithPoolLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.poolLimit = n
		}
	}
}

// withAllocator replaces the host buffer allocator.
func withAllocator(a hostmem.Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}
