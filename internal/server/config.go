package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultDbPath    = ".data/notes.db"
	DefaultRateLimit = "100-S"
)

type Config struct {
	HTTP      HTTPConfig `mapstructure:"http"`
	DbPath    string     `mapstructure:"db_path"`
	RateLimit string     `mapstructure:"rate_limit"`
	LogDir    string     `mapstructure:"log_dir"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return fmt.Errorf("invalid http addr %q: %w", c.HTTP.Addr, err)
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http cert_file and key_file must be set together")
	}
	if c.DbPath == "" {
		c.DbPath = DefaultDbPath
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("invalid rate_limit %q: %w", c.RateLimit, err)
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.HTTP.Addr),
		slog.Bool("tls", c.HTTP.TLS()),
		slog.String("db", c.DbPath),
		slog.String("rateLimit", c.RateLimit),
		slog.String("logDir", c.LogDir),
	)
}
