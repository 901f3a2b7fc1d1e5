package server

import (
	"net/http"
	"strconv"
	"time"
)

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host      string        `env:"HOST" envDefault:"0.0.0.0"`
	Port      uint16        `env:"PORT" envDefault:"9000"`
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
}

// Addr renders host and port as a listen address for http.Server
func (c EnvConfig) Addr() string {
	return c.Host + ":" + strconv.FormatUint(uint64(c.Port), 10)
}

// Option alters Server construction defaults
type Option interface {
	apply(*settings)
}

type optionFunc func(s *settings)

func (f optionFunc) apply(s *settings) { f(s) }

type settings struct {
	readTimeout        time.Duration
	creatorOnlyInvites bool
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(s *settings) {
		s.readTimeout = d
	})
}

// CreatorOnlyInvites restricts adding group members to the group creator.
// By default any current member may invite.
func CreatorOnlyInvites() Option {
	return optionFunc(func(s *settings) {
		s.creatorOnlyInvites = true
	})
}

func (s settings) applyTo(srv *http.Server) {
	if s.readTimeout != 0 {
		srv.ReadTimeout = s.readTimeout
	}
}
