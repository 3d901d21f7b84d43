package fetchers

import (
	"context"
	"encoding/json"
	"net/url"

	"blockchain-explorer/internal/rest"
)

// Getter issues a GET against the upstream API and returns the decoded JSON body.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (any, error)
}

var _ Getter = (*rest.Client)(nil)

func lookup(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil && i > 0 {
			return uint64(i)
		}
		if f, err := x.Float64(); err == nil && f > 0 {
			return uint64(f)
		}
	case float64:
		if x > 0 {
			return uint64(x)
		}
	}
	return 0
}
