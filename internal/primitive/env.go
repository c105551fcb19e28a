package primitive

import (
	"os"
	"regexp"
	"strings"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// envDefaultPattern matches ${VAR:-default} for shell-style default
// expansion, layered on top of the {var} context-variable substitution.
var envDefaultPattern = regexp.MustCompile(`\$\{(\w+):-([^}]*)\}`)

// expandShellDefaults resolves ${VAR:-default} references against the
// process environment, grounded on the teacher's os.ExpandEnv-based
// config value expansion, generalized to support a fallback default.
func expandShellDefaults(s string) string {
	return envDefaultPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envDefaultPattern.FindStringSubmatch(match)
		name, def := sub[1], sub[2]
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	})
}

// ComposeEnv builds the subprocess environment: base OS env, then the
// runtime's static env (with {var} and ${VAR:-default} expansion), then
// env_paths entries prepended onto any matching PATH-like variable.
func ComposeEnv(base []string, cfg *ryemodels.EnvConfig, vars map[string]string, anchor string) []string {
	env := append([]string{}, base...)
	if cfg == nil {
		return env
	}

	for k, v := range cfg.Env {
		expanded := expandShellDefaults(Expand(v, vars))
		env = setEnv(env, k, expanded)
	}

	for _, pathVar := range cfg.EnvPaths {
		if anchor == "" {
			continue
		}
		current := lookupEnv(env, pathVar)
		var next string
		if current == "" {
			next = anchor
		} else {
			next = anchor + string(os.PathListSeparator) + current
		}
		env = setEnv(env, pathVar, next)
	}
	return env
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}
