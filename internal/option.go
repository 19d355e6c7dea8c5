package internal

import (
	"io"
	"log/slog"
	"os"

	"github.com/starford/smarttags/internal/prompt"
	"github.com/starford/smarttags/internal/resolver"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	logger  *slog.Logger
	chooser resolver.Chooser
	out     io.Writer
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger sets the logger. Without it serve logs JSON to stdout, mcp logs
// text to stderr and the CLI operations use slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithChooser sets how unknown tags are settled. Defaults to using the
// closest suggestion without changing the store.
func WithChooser(c resolver.Chooser) Option {
	return func(a *application) {
		a.chooser = c
	}
}

// WithOutput sets where user-facing output goes. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	if app.chooser == nil {
		app.chooser = prompt.Fixed{Intent: resolver.UseExisting}
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.version == "" {
		app.version = "dev"
	}
	return app, nil
}

func (a *application) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}
