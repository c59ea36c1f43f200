package config

import (
	"context"
	"errors"

	"pingbot/internal/env"
)

// EnvVarProvider implements SecretProvider over an env.Source, treating each
// key as a variable name. LoadConfig uses it for APP_ENV=local so pointer
// variables work without AWS.
type EnvVarProvider struct {
	source env.Source
}

// NewEnvVarProvider creates an EnvVarProvider. A nil source reads the process
// environment.
func NewEnvVarProvider(source env.Source) *EnvVarProvider {
	if source == nil {
		source = env.NewOSSource()
	}
	return &EnvVarProvider{source: source}
}

// GetParametersBatch returns the keys the source can resolve. Keys that are
// absent or not valid unicode are omitted; any other source failure aborts
// the batch.
func (p *EnvVarProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		val, err := p.source.Var(key)
		if errors.Is(err, env.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	return result, nil
}
