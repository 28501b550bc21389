package reader

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/tsawler/folio/internal/logger"
)

// Config controls how a document is opened.
type Config struct {
	// Password is tried as the owner password, then as the user password.
	Password string
	// Partial defers loading each object until it is first requested.
	Partial bool
	// MaxDepth bounds reference chains, deep resolution and page tree
	// nesting.
	MaxDepth int `validate:"min=1,max=100000"`
	// HeaderWindow is how many leading bytes are searched for %PDF-.
	HeaderWindow int `validate:"min=8,max=1048576"`
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() Config {
	return Config{
		MaxDepth:     100,
		HeaderWindow: 1024,
	}
}

var validate = validator.New()

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid reader config: %w", err)
	}
	return nil
}

type options struct {
	cfg Config
	log *logger.Logger
}

// Option configures a Reader
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithPassword sets the password used for encrypted documents.
func WithPassword(password string) Option {
	return func(o *options) { o.cfg.Password = password }
}

// WithPartial enables partial (lazy) loading.
func WithPartial(partial bool) Option {
	return func(o *options) { o.cfg.Partial = partial }
}

// WithMaxDepth sets Config.MaxDepth.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.cfg.MaxDepth = depth }
}

// WithLogger sends repair and diagnostic messages to l. Without it the
// package-level logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = logger.New(logger.FromSlog(l))
		}
	}
}
