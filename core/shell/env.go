package shell

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var bracedVarRegex = regexp.MustCompile(`\$\{([^}]*)\}`)

// NewEnvFromList creates an environment from "key=value" pairs.
func NewEnvFromList(environ []string) *Env {
	out := &Env{}

	for _, e := range environ {
		split := strings.SplitN(e, "=", 2)
		key, value := split[0], ""
		if len(split) > 1 {
			value = split[1]
		}
		out.Setenv(key, value)
	}

	return out
}

// Env is the environment commands run with. It also carries the positional
// pseudo-variables 0..N, which are never exported to child processes.
type Env struct {
	rw  sync.RWMutex
	env map[string]string
}

// Setenv sets the value of the variable named by the key.
func (m *Env) Setenv(key, value string) {
	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	m.env[key] = value
}

// LookupEnv retrieves a variable and whether it was set.
func (m *Env) LookupEnv(key string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[key]
	return val, ok
}

// Getenv retrieves a variable, empty if unset.
func (m *Env) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// ExpandEnv replaces ${name} with the value of known variables. Unknown names
// and the unbraced $name form are left as written, so displayed commands read
// the way the script author typed them.
func (m *Env) ExpandEnv(s string) string {
	return bracedVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := m.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Environ returns every variable as sorted "key=value" pairs.
func (m *Env) Environ() []string {
	return m.environ(func(string) bool { return true })
}

// Exported returns the variables handed to child processes.
func (m *Env) Exported() []string {
	return m.environ(func(key string) bool { return !isPositional(key) })
}

func (m *Env) environ(keep func(string) bool) []string {
	m.rw.RLock()
	defer m.rw.RUnlock()

	var env []string
	for k, v := range m.env {
		if keep(k) {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	sort.Strings(env)
	return env
}

func isPositional(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
