// Package secret resolves secret references at use time. Only references
// are persisted with the configuration; resolved values never land in the
// database or in logs.
package secret

import (
	"os"
	"strings"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
)

// Resolver resolves a secret reference to its value.
type Resolver interface {
	Resolve(ref string) (string, error)
}

// EnvFileResolver understands three reference forms: "env:NAME" reads an
// environment variable, "file:/path" reads a file (trailing newline
// stripped), and the empty reference resolves to an empty secret.
type EnvFileResolver struct{}

func NewResolver() *EnvFileResolver {
	return &EnvFileResolver{}
}

func (r *EnvFileResolver) Resolve(ref string) (string, error) {
	switch {
	case ref == "":
		return "", nil
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", backuperr.Newf(backuperr.KindConfig, "secret environment variable %s is not set", name)
		}
		return value, nil
	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", backuperr.Wrap(backuperr.KindConfig, "read secret file", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	default:
		return "", backuperr.Newf(backuperr.KindConfig, "secret reference must start with env: or file:")
	}
}
