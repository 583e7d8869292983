package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/services"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Logger receives engine and command events
	Logger zerolog.Logger

	// Config is the loaded configuration. Nil uses the defaults.
	Config *disk.Config

	// Metrics receives engine counters when set
	Metrics *services.Metrics

	// Common timeouts
	DefaultTimeout time.Duration

	// Progress reporting
	ProgressCallback func(message string, percent int)
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:        context.Background(),
		OutputFormat:   "table",
		Logger:         zerolog.Nop(),
		DefaultTimeout: 30 * time.Second,
	}
}

// WithTimeout creates a context with timeout
func (c *Context) WithTimeout(timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

// Log records a message when verbose output is enabled
func (c *Context) Log(message string) {
	if !c.Quiet && c.Verbose {
		c.Logger.Info().Msg(message)
	}
}

// Error records an error unless quiet
func (c *Context) Error(message string, err error) {
	if !c.Quiet {
		c.Logger.Error().Err(err).Str("code", ClassifyError(err)).Msg(message)
	}
}
