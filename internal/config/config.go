package config

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the adoption platform service.
type Config struct {
	Addr        string `env:"ADDR,default=:8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	Environment string `env:"ENVIRONMENT,default=development"`

	JWTSecret string `env:"JWT_SECRET,required"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS,default=100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`

	DevtoolsEnabled bool          `env:"DEVTOOLS_ENABLED,default=false"`
	DevtoolsJobTTL  time.Duration `env:"DEVTOOLS_JOB_TTL,default=30m"`
	DevtoolsMaxJobs int           `env:"DEVTOOLS_MAX_JOBS,default=64"`

	NATSURL        string `env:"NATS_URL"`
	WorkbookBucket string `env:"S3_BUCKET"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with the production hard gate
// engaged. Dev-tools routes and the fallback identity are unreachable when true.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
