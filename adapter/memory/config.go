package memory

import "time"

// Config controls memory transport behavior.
type Config struct {
	// BufferSize is the per-group queue size (default: 1024).
	BufferSize int
	// Concurrency is the number of workers per subscription (default: 1).
	Concurrency int
	// RedeliveryDelay is the delay before a nacked envelope is requeued.
	RedeliveryDelay time.Duration
	// AssignIDs assigns a uuid to envelopes published without an ID.
	AssignIDs bool
}

// Defaults returns the configuration used for zero fields.
func Defaults() Config {
	return Config{BufferSize: 1024, Concurrency: 1, AssignIDs: true}
}

func (c Config) withDefaults() Config {
	if c.BufferSize < 1 {
		c.BufferSize = 1024
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	return c
}

// ConfigFromMap reads buffer_size, concurrency, redelivery_delay and
// assign_ids, as produced by routecfg or toMap.
func ConfigFromMap(cfg map[string]any) Config {
	d := Defaults()
	getInt := func(k string, def int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return def
		}
	}
	getBool := func(k string, def bool) bool {
		if v, ok := cfg[k].(bool); ok {
			return v
		}
		return def
	}
	getDur := func(k string, def time.Duration) time.Duration {
		switch v := cfg[k].(type) {
		case time.Duration:
			return v
		case string:
			if p, err := time.ParseDuration(v); err == nil {
				return p
			}
		case int:
			return time.Duration(v)
		case float64:
			return time.Duration(v)
		}
		return def
	}
	return Config{
		BufferSize:      getInt("buffer_size", d.BufferSize),
		Concurrency:     getInt("concurrency", d.Concurrency),
		RedeliveryDelay: getDur("redelivery_delay", d.RedeliveryDelay),
		AssignIDs:       getBool("assign_ids", d.AssignIDs),
	}.withDefaults()
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"buffer_size":      c.BufferSize,
		"concurrency":      c.Concurrency,
		"redelivery_delay": c.RedeliveryDelay,
		"assign_ids":       c.AssignIDs,
	}
}
