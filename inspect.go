package folio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/logger"
	"github.com/tsawler/folio/reader"
)

// InspectConfig controls Inspect.
type InspectConfig struct {
	// MaxConcurrent is the number of files opened at the same time.
	MaxConcurrent int `validate:"min=1,max=256"`
	// Password is tried on encrypted files.
	Password string
	// Images counts the image XObjects of every page.
	Images bool
	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultInspectConfig returns the settings used by most callers.
func DefaultInspectConfig() InspectConfig {
	return InspectConfig{MaxConcurrent: 4, Images: true}
}

var validate = validator.New()

// Validate checks the configuration values.
func (c InspectConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid inspect config: %w", err)
	}
	return nil
}

// Report summarises one file.
type Report struct {
	Path            string
	Version         string
	Pages           int
	Objects         int
	Encrypted       bool
	FullPermissions bool
	Permissions     crypt.Permissions
	Rebuilt         bool
	Images          int
	// Err is set when the file could not be opened, in which case the
	// other fields are zero, or when pages could not be scanned for images.
	Err error
}

// Inspect opens every path with at most cfg.MaxConcurrent files open at
// once and returns one report per path, in input order. Files that fail to
// open are reported through Report.Err; only cancellation of ctx or an
// invalid configuration makes Inspect itself fail.
func Inspect(ctx context.Context, paths []string, cfg InspectConfig) ([]Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(nil)
	if cfg.Logger != nil {
		log = logger.New(logger.FromSlog(cfg.Logger))
	}

	reports := make([]Report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrent)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = inspectFile(path, cfg)
			if err := reports[i].Err; err != nil {
				log.Warn("failed to inspect file", "path", path, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func inspectFile(path string, cfg InspectConfig) Report {
	rep := Report{Path: path}
	opts := []reader.Option{reader.WithPartial(true), reader.WithPassword(cfg.Password)}
	if cfg.Logger != nil {
		opts = append(opts, reader.WithLogger(cfg.Logger.With("path", path)))
	}
	r, err := reader.Open(path, opts...)
	if err != nil {
		rep.Err = err
		return rep
	}
	defer r.Close()

	rep.Version = r.Version().String()
	rep.Pages = r.PageCount()
	rep.Objects = r.NumObjects()
	rep.Encrypted = r.IsEncrypted()
	rep.FullPermissions = r.IsOpenedWithFullPermissions()
	rep.Permissions = r.Permissions()
	rep.Rebuilt = r.Rebuilt()

	if cfg.Images {
		for n := 1; n <= rep.Pages; n++ {
			images, err := r.PageImages(n)
			if err != nil {
				rep.Err = errors.Join(rep.Err, fmt.Errorf("page %d: %w", n, err))
				continue
			}
			rep.Images += len(images)
			for _, img := range images {
				r.Release(img.Ref.Number)
			}
		}
	}
	return rep
}
