package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the process settings read from the environment. CLI flags
// override individual fields after parsing.
type Server struct {
	Host        string        `env:"HOST"         envDefault:"localhost"`
	Port        int           `env:"PORT"         envDefault:"8080"`
	DBPath      string        `env:"DB_PATH"      envDefault:"boardgames.db"`
	ConfigDir   string        `env:"CONFIG_DIR"   envDefault:"configs"`
	TokenSecret string        `env:"TOKEN_SECRET"`
	TurnBuffer  time.Duration `env:"TURN_BUFFER"  envDefault:"3s"`
	Debug       bool          `env:"DEBUG"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// EnvPrefix is prepended to every variable name of Server.
const EnvPrefix = "BOARDGAMES_"

// LoadServer parses the BOARDGAMES_* environment variables.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks the settings required to serve.
func (s Server) Validate() error {
	if s.TokenSecret == "" {
		return fmt.Errorf("%sTOKEN_SECRET is required", EnvPrefix)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d is out of range", s.Port)
	}
	if s.TurnBuffer < 0 {
		return fmt.Errorf("turn buffer must not be negative")
	}
	if s.NgrokEnabled && s.NgrokAuthToken == "" {
		return fmt.Errorf("%sNGROK_AUTHTOKEN is required when ngrok is enabled", EnvPrefix)
	}
	return nil
}
