// Package paramutil reads typed values out of the untyped
// map[string]any metadata/params maps the Scaling Driver Registry passes
// to every driver. It is a leaf package (no dependency on the drivers
// registry itself) so every cloud-family subpackage can depend on it
// without creating an import cycle back through the registry's Build
// factory.
package paramutil

import "fmt"

// String reads key from m as a string, returning ok=false if absent or of
// the wrong type.
func String(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RequireString is String but returns an error (a missing required param
// is a 4xx-shaped caller mistake, never retryable) when absent.
func RequireString(m map[string]any, key string) (string, error) {
	s, ok := String(m, key)
	if !ok || s == "" {
		return "", fmt.Errorf("missing required param %q", key)
	}
	return s, nil
}

// Int reads key as an int, accepting both JSON-decoded float64 and native
// int/int64 representations.
func Int(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Float64 mirrors Int for float-valued params.
func Float64(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Bool reads key as a bool.
func Bool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// StringMap reads key as a map[string]string, tolerating a
// map[string]any source (the common shape after YAML/JSON decode).
func StringMap(m map[string]any, key string) map[string]string {
	out := map[string]string{}
	raw, ok := m[key]
	if !ok {
		return out
	}
	switch v := raw.(type) {
	case map[string]string:
		return v
	case map[string]any:
		for k, vv := range v {
			out[k] = fmt.Sprint(vv)
		}
	}
	return out
}

// Credentials is the common explicit-override shape every cloud driver
// checks first, per spec §4.D contract 1: explicit metadata, then ambient
// environment/instance credentials.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
}

// ResolveCredentials reads access_key/secret_key/region out of metadata.
// An empty Credentials means "use ambient credentials" — callers pass it
// straight to the SDK's default credential chain.
func ResolveCredentials(metadata map[string]any) Credentials {
	var c Credentials
	c.AccessKey, _ = String(metadata, "access_key")
	c.SecretKey, _ = String(metadata, "secret_key")
	c.Region, _ = String(metadata, "region")
	return c
}

// Explicit reports whether both access_key and secret_key were set,
// i.e. the caller wants static credentials rather than the ambient chain.
func (c Credentials) Explicit() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
