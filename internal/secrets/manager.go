// Package secrets exposes the credentials the bot needs, read through an
// injectable env.Source.
package secrets

import "pingbot/internal/env"

// DiscordTokenKey is the environment variable holding the bot token.
const DiscordTokenKey = "DISCORD_TOKEN"

// Manager looks secrets up on demand. Every call performs a fresh read from
// the underlying source.
type Manager struct {
	source env.Source
}

// NewManager creates a Manager reading from source.
func NewManager(source env.Source) *Manager {
	return &Manager{source: source}
}

// Default returns a Manager backed by the process environment.
func Default() *Manager {
	return NewManager(env.NewOSSource())
}

// DiscordToken returns the value of DISCORD_TOKEN. The source's error is
// returned unchanged when the variable is absent.
func (m *Manager) DiscordToken() (string, error) {
	return m.source.Var(DiscordTokenKey)
}
