package arc

import "log/slog"

// Resolver maps entry UIDs to known paths.
type Resolver interface {
	Resolve(uid uint32) (string, bool)
}

type config struct {
	strict   bool
	compress bool
	name     string
	logger   *slog.Logger
	resolver Resolver
}

func newConfig(opts []Option) config {
	cfg := config{compress: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// Option configures an Archive.
type Option func(*config)

// WithStrict makes any digest mismatch abort parsing with an *IntegrityError.
// By default mismatches are logged and the data is kept.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithCompression controls whether entries are compressed when packing.
// Compression is enabled by default.
func WithCompression(compress bool) Option {
	return func(c *config) {
		c.compress = compress
	}
}

// WithName sets the archive file name expected by the header name hash.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger used for integrity warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithResolver lets parsing attach known paths to entries.
func WithResolver(r Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}
