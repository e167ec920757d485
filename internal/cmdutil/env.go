package cmdutil

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix namespaces every environment variable the CLI reads.
const EnvPrefix = "HYPER_BINDGEN_"

// Env returns the env var name for a flag, e.g. "api-dir" -> HYPER_BINDGEN_API_DIR.
func Env(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// EnvString returns the trimmed env value if present; otherwise fallback.
func EnvString(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// EnvBool parses a boolean env value; unset or blank returns fallback.
func EnvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}

// SplitCSVEnv splits a comma-separated env value into trimmed, non-empty parts.
func SplitCSVEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StringList is a repeatable string flag.
type StringList []string

func (s *StringList) String() string { return strings.Join(*s, ",") }

func (s *StringList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*s = append(*s, v)
	}
	return nil
}
