package stamper

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/logger"
)

// Config controls the output written by Close.
type Config struct {
	// FullCompression stores objects in object streams and writes an xref
	// stream instead of a classic table.
	FullCompression bool
	// ObjectsPerStream caps the number of objects in one object stream.
	ObjectsPerStream int `validate:"min=1,max=10000"`
	// MinVersion raises the header version, e.g. "1.7".
	MinVersion string `validate:"omitempty,oneof=1.4 1.5 1.6 1.7 2.0"`
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() Config {
	return Config{ObjectsPerStream: 100}
}

var validate = validator.New()

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid stamper config: %w", err)
	}
	return nil
}

type options struct {
	cfg     Config
	log     *logger.Logger
	encrypt *crypt.Params
}

// Option configures a Stamper
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithFullCompression enables object streams and an xref stream.
func WithFullCompression() Option {
	return func(o *options) { o.cfg.FullCompression = true }
}

// WithEncryption encrypts the output with p instead of the source
// document's own encryption.
func WithEncryption(p crypt.Params) Option {
	return func(o *options) { o.encrypt = &p }
}

// WithLogger sends diagnostic messages to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = logger.New(logger.FromSlog(l))
		}
	}
}
