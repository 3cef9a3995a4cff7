package nodetype

import (
	"maps"

	json "github.com/goccy/go-json"
)

// Config is the static configuration of a node instance, e.g. temperature or
// system prompt. It is copied into the graph and never mutated afterwards.
type Config map[string]any

func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

// String returns a JSON representation of the config, or an empty string
// when it can't be marshaled.
func (c Config) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

func (c Config) GetString(key, fallback string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return fallback
}

func (c Config) GetBool(key string, fallback bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return fallback
}

func (c Config) GetFloat(key string, fallback float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}
