package cache

import (
	"net/url"
	"strconv"
)

// Key builds a deterministic cache key from a prefix and every parameter
// that affects the cached result. Parameters are sorted by name; empty
// values are dropped so that "unset" and "empty" map to the same key.
func Key(prefix string, params url.Values) string {
	clean := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				clean.Add(k, v)
			}
		}
	}
	if len(clean) == 0 {
		return prefix
	}
	return prefix + "?" + clean.Encode()
}

// IntKey is shorthand for a key with a single integer parameter.
func IntKey(prefix, name string, v int) string {
	return Key(prefix, url.Values{name: {strconv.Itoa(v)}})
}
