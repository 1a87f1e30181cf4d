package ferry

import (
	"github.com/rs/zerolog"

	"github.com/ferrylabs/ferry/internal/copier"
	"github.com/ferrylabs/ferry/internal/planner"
	"github.com/ferrylabs/ferry/internal/router"
	"github.com/ferrylabs/ferry/progress"
)

// S3Settings configures the s3:// backend. Zero values defer to the default
// AWS resolution chain.
type S3Settings struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MinioSettings configures the minio:// backend.
type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// OBSSettings configures the obs:// backend.
type OBSSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// BackendSettings groups the per-scheme backend configuration.
type BackendSettings struct {
	S3    S3Settings
	Minio MinioSettings
	OBS   OBSSettings
}

type config struct {
	maxTransfers   int
	partSize       int64
	billingProject string
	tracker        progress.Tracker
	logger         zerolog.Logger
	backends       BackendSettings
	extraBackends  map[string]router.Factory
}

func defaultConfig() config {
	return config{
		maxTransfers:  copier.DefaultMaxTransfers,
		partSize:      planner.DefaultPartSize,
		tracker:       progress.Nop(),
		logger:        zerolog.Nop(),
		extraBackends: make(map[string]router.Factory),
	}
}

// Option configures a Copier.
type Option func(*config)

// WithMaxSimultaneousTransfers caps how many copy tasks may be actively
// transferring bytes at once. It bounds open files and connections on both
// the source and destination backends.
func WithMaxSimultaneousTransfers(n int) Option {
	return func(c *config) {
		c.maxTransfers = n
	}
}

// WithPartSize sets the threshold above which an object is copied as
// multiple parallel parts, and the size of each part.
func WithPartSize(size int64) Option {
	return func(c *config) {
		c.partSize = size
	}
}

// WithBillingProject sets the requester-pays project identifier passed
// opaquely to backends that support it.
func WithBillingProject(project string) Option {
	return func(c *config) {
		c.billingProject = project
	}
}

// WithProgress attaches a progress tracker. Correctness never depends on a
// tracker being attached.
func WithProgress(t progress.Tracker) Option {
	return func(c *config) {
		if t != nil {
			c.tracker = t
		}
	}
}

// WithLogger attaches a logger for per-transfer events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithBackendSettings supplies endpoint and credential configuration for the
// built-in backends.
func WithBackendSettings(s BackendSettings) Option {
	return func(c *config) {
		c.backends = s
	}
}

// withBackend registers an additional backend factory for a scheme,
// replacing the built-in one if the scheme collides. Used by tests.
func withBackend(scheme string, f router.Factory) Option {
	return func(c *config) {
		c.extraBackends[scheme] = f
	}
}
