package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Config for the NATS transport.
type Config struct {
	URL      string
	Name     string
	Username string
	Password string
	Token    string

	Timeout       time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
	FlushTimeout  time.Duration

	// BufferSize bounds the per-subscription channel; Concurrency workers
	// drain it.
	BufferSize  int
	Concurrency int

	// DeadLetter is the subject nacked envelopes are forwarded to.
	DeadLetter string
}

func Defaults() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "xroute",
		Timeout:       5 * time.Second,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  time.Second,
		BufferSize:    1024,
		Concurrency:   4,
	}
}

// Validate checks Config before connecting.
func (c Config) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("nats: url required")
	case c.Token != "" && c.Username != "":
		return fmt.Errorf("nats: token and username are mutually exclusive")
	case c.BufferSize < 1:
		return fmt.Errorf("nats: buffer_size must be >= 1, got %d", c.BufferSize)
	case c.Concurrency < 1:
		return fmt.Errorf("nats: concurrency must be >= 1, got %d", c.Concurrency)
	case c.FlushTimeout <= 0:
		return fmt.Errorf("nats: flush_timeout must be > 0, got %v", c.FlushTimeout)
	}
	return nil
}

func (c Config) options() []nats.Option {
	opts := []nats.Option{
		nats.Timeout(c.Timeout),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
	}
	if c.Name != "" {
		opts = append(opts, nats.Name(c.Name))
	}
	if c.Username != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"url":            c.URL,
		"name":           c.Name,
		"username":       c.Username,
		"password":       c.Password,
		"token":          c.Token,
		"timeout":        c.Timeout,
		"max_reconnects": c.MaxReconnects,
		"reconnect_wait": c.ReconnectWait,
		"flush_timeout":  c.FlushTimeout,
		"buffer_size":    c.BufferSize,
		"concurrency":    c.Concurrency,
		"dead_letter":    c.DeadLetter,
	}
}

// ConfigFromMap overlays m on Defaults. Durations may be time.Duration or
// strings such as "2s".
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	str := func(k string, dst *string) {
		if v, ok := m[k].(string); ok && v != "" {
			*dst = v
		}
	}
	integer := func(k string) (int, bool) {
		switch v := m[k].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
		return 0, false
	}
	duration := func(k string) (time.Duration, bool) {
		switch v := m[k].(type) {
		case time.Duration:
			return v, v > 0
		case string:
			d, err := time.ParseDuration(v)
			return d, err == nil && d > 0
		}
		return 0, false
	}

	str("url", &c.URL)
	str("name", &c.Name)
	str("username", &c.Username)
	str("password", &c.Password)
	str("token", &c.Token)
	str("dead_letter", &c.DeadLetter)

	if v, ok := integer("max_reconnects"); ok {
		c.MaxReconnects = v
	}
	if v, ok := integer("buffer_size"); ok && v > 0 {
		c.BufferSize = v
	}
	if v, ok := integer("concurrency"); ok && v > 0 {
		c.Concurrency = v
	}
	if v, ok := duration("timeout"); ok {
		c.Timeout = v
	}
	if v, ok := duration("reconnect_wait"); ok {
		c.ReconnectWait = v
	}
	if v, ok := duration("flush_timeout"); ok {
		c.FlushTimeout = v
	}
	return c
}
