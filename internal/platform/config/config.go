package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration, read from XCLONE_* variables.
type Server struct {
	Addr             string        `env:"ADDR" envDefault:":8080"`
	BackendURL       string        `env:"BACKEND_URL" envDefault:"http://127.0.0.1:8000/"`
	UsernameCheckURL string        `env:"USERNAME_CHECK_URL" envDefault:"http://127.0.0.1:43069/"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT" envDefault:"0s"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SecureCookies    bool          `env:"SECURE_COOKIES" envDefault:"false"`

	Signup  Signup
	Limits  Limits
	Logging Logging

	DefaultTheme string `env:"DEFAULT_THEME" envDefault:"dark"`
}

// Signup tunes the registration wizard.
type Signup struct {
	FallbackCode   string        `env:"FALLBACK_CODE" envDefault:"123456"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
	FlowTTL        time.Duration `env:"FLOW_TTL" envDefault:"30m"`
	SweepInterval  time.Duration `env:"FLOW_SWEEP_INTERVAL" envDefault:"1m"`
}

// Limits bounds traffic on the username proxy routes, per client IP.
// Forwarding headers only name the client when the connection comes from
// one of TrustedProxies (comma separated CIDRs).
type Limits struct {
	CheckRPS       float64        `env:"CHECK_RPS" envDefault:"5"`
	CheckBurst     int            `env:"CHECK_BURST" envDefault:"10"`
	LimiterIdle    time.Duration  `env:"LIMITER_IDLE_TTL" envDefault:"30m"`
	LimitDisabled  bool           `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES"`
}

type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

const envPrefix = "XCLONE_"

// FromEnv builds the Server config from the process environment.
func FromEnv() (Server, error) {
	return parse(env.Options{Prefix: envPrefix})
}

// FromMap builds the Server config from explicit variables, ignoring the
// process environment.
func FromMap(vars map[string]string) (Server, error) {
	return parse(env.Options{Prefix: envPrefix, Environment: vars})
}

func parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	if c.Signup.ResendCooldown < 0 {
		return fmt.Errorf("XCLONE_RESEND_COOLDOWN must not be negative")
	}
	if c.Signup.SweepInterval <= 0 {
		return fmt.Errorf("XCLONE_FLOW_SWEEP_INTERVAL must be positive")
	}
	if c.Limits.LimiterIdle <= 0 {
		return fmt.Errorf("XCLONE_LIMITER_IDLE_TTL must be positive")
	}
	if !c.Limits.LimitDisabled && (c.Limits.CheckRPS <= 0 || c.Limits.CheckBurst <= 0) {
		return fmt.Errorf("XCLONE_CHECK_RPS and XCLONE_CHECK_BURST must be positive")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("XCLONE_LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("XCLONE_LOG_LEVEL: %w", err)
	}
	return level, nil
}
