package config

import "context"

// SecretProvider resolves a batch of secret identifiers (SSM paths, or plain
// variable names for EnvVarProvider) to their plaintext values. Keys that
// cannot be found are omitted from the result map.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
