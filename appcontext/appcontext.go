// Package appcontext carries the cross-cutting state of one invocation:
// logger, configuration, cancellation and concurrency limits.
package appcontext

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/PhyloKorp/ipkdb/config"
	"github.com/PhyloKorp/ipkdb/logging"
)

type AppContext struct {
	logger *logging.Logger
	Config *config.Config

	Context context.Context
	Cancel  context.CancelFunc

	Stdout io.Writer
	Stderr io.Writer

	WorkDir        string
	MaxConcurrency int
	NumCPU         int
}

func NewAppContext() *AppContext {
	ctx, cancel := context.WithCancel(context.Background())

	numCPU := runtime.NumCPU()
	return &AppContext{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		Context:        ctx,
		Cancel:         cancel,
		NumCPU:         numCPU,
		MaxConcurrency: numCPU,
	}
}

func (c *AppContext) Close() {
	c.Cancel()
}

func (c *AppContext) Deadline() (time.Time, bool) {
	return c.Context.Deadline()
}

func (c *AppContext) Done() <-chan struct{} {
	return c.Context.Done()
}

func (c *AppContext) Err() error {
	return c.Context.Err()
}

func (c *AppContext) Value(key any) any {
	return c.Context.Value(key)
}

func (c *AppContext) SetLogger(logger *logging.Logger) {
	c.logger = logger
}

func (c *AppContext) GetLogger() *logging.Logger {
	if c.logger == nil {
		c.logger = logging.NewLogger(c.Stdout, c.Stderr)
	}
	return c.logger
}
