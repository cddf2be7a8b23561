package assistant

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"navagent/internal/intent"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultModelMatch       = "SmolLM2"
	defaultStartupDelay     = 3 * time.Second
	defaultReadyTimeout     = 30 * time.Second
	defaultDownloadSettle   = time.Second
	defaultLoadTick         = 500 * time.Millisecond
	defaultLoadHold         = 500 * time.Millisecond
	defaultInferTimeout     = 8 * time.Second
	defaultMaxResponseChars = 300

	loadProgressStart = 10
	loadProgressStep  = 2
	loadProgressCap   = 90
)

// Config encapsulates all tunables for Controller construction.
type Config struct {
	// ModelMatch is the substring identifying the target model, compared
	// case-insensitively against display names.
	ModelMatch string
	// GuidePath overrides the built-in features guide.
	GuidePath string
	// CacheDirs are removed by the janitor before anything else runs.
	CacheDirs []string

	StartupDelay   time.Duration
	ReadyTimeout   time.Duration
	DownloadSettle time.Duration
	LoadTick       time.Duration
	LoadHold       time.Duration
	InferTimeout   time.Duration

	MaxResponseChars int
	MaxGuideChars    int

	// Rules defaults to intent.DefaultRules.
	Rules     intent.RuleSet
	Logger    zerolog.Logger
	Publisher EventPublisher
	Tracer    trace.Tracer
}

func (c Config) withDefaults() Config {
	if c.ModelMatch == "" {
		c.ModelMatch = defaultModelMatch
	}
	if c.StartupDelay <= 0 {
		c.StartupDelay = defaultStartupDelay
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.DownloadSettle <= 0 {
		c.DownloadSettle = defaultDownloadSettle
	}
	if c.LoadTick <= 0 {
		c.LoadTick = defaultLoadTick
	}
	if c.LoadHold <= 0 {
		c.LoadHold = defaultLoadHold
	}
	if c.InferTimeout <= 0 {
		c.InferTimeout = defaultInferTimeout
	}
	if c.MaxResponseChars <= 0 {
		c.MaxResponseChars = defaultMaxResponseChars
	}
	if c.MaxGuideChars <= 0 {
		c.MaxGuideChars = intent.DefaultMaxGuideChars
	}
	if c.Rules == nil {
		c.Rules = intent.DefaultRules()
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("navagent/internal/assistant")
	}
	return c
}
