package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingbot/internal/bot"
	"pingbot/internal/config"
	"pingbot/internal/env"
	"pingbot/internal/secrets"
	"pingbot/internal/types"
)

type fakeGateway struct {
	started atomic.Bool
	runErr  error
}

func (f *fakeGateway) Name() string                  { return "fake_gateway" }
func (f *fakeGateway) Check(_ context.Context) error { return nil }

func (f *fakeGateway) Run(ctx context.Context) error {
	f.started.Store(true)
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "pingbot",
		LogLevel:    "debug",
		Server:      config.ServerConfig{ShutdownTimeout: time.Second},
	}
}

type testDeps struct {
	deps
	stdout       *bytes.Buffer
	clientCalls  atomic.Int32
	gotToken     types.SecretString
	gateway      *fakeGateway
	metricsCalls atomic.Int32
}

func newTestDeps(source env.Source) *testDeps {
	td := &testDeps{
		stdout:  &bytes.Buffer{},
		gateway: &fakeGateway{},
	}
	td.deps = deps{
		stdout:     td.stdout,
		loadConfig: func() (*config.Config, error) { return testConfig(), nil },
		source:     source,
		newMetrics: func(context.Context, *config.Config, *slog.Logger) (bot.Metrics, error) {
			td.metricsCalls.Add(1)
			return bot.NoopMetrics{}, nil
		},
		newClient: func(token types.SecretString, _ *bot.Handler, _ *slog.Logger) (gateway, error) {
			td.clientCalls.Add(1)
			td.gotToken = token
			return td.gateway, nil
		},
	}
	return td
}

func TestRun_MissingTokenAbortsBeforeConnecting(t *testing.T) {
	td := newTestDeps(env.NewMapSource())

	err := run(context.Background(), td.deps)

	require.Error(t, err)
	assert.ErrorIs(t, err, env.ErrNotFound)
	assert.Contains(t, err.Error(), secrets.DiscordTokenKey)
	assert.Zero(t, td.clientCalls.Load(), "client must not be constructed without a token")
	assert.Zero(t, td.metricsCalls.Load())
	assert.False(t, td.gateway.started.Load())

	logs := td.stdout.String()
	assert.Contains(t, logs, "expected a token in the environment")
	assert.Contains(t, logs, `"key":"DISCORD_TOKEN"`)
	assert.Contains(t, logs, `"instance_id"`)
}

func TestRun_StartsClientWithToken(t *testing.T) {
	src := env.NewMapSource()
	src.Set(secrets.DiscordTokenKey, "super-secret-token")
	td := newTestDeps(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, td.deps) }()

	require.Eventually(t, td.gateway.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	assert.Equal(t, int32(1), td.clientCalls.Load())
	assert.Equal(t, "super-secret-token", td.gotToken.Unmask())
	assert.NotContains(t, td.stdout.String(), "super-secret-token")
	assert.Contains(t, td.stdout.String(), "pingbot stopped")
}

func TestRun_ClientErrorIsReturned(t *testing.T) {
	src := env.NewMapSource()
	src.Set(secrets.DiscordTokenKey, "token")
	td := newTestDeps(src)
	td.gateway.runErr = errors.New("opening gateway connection: 4004 authentication failed")

	err := run(context.Background(), td.deps)

	require.Error(t, err)
	assert.ErrorIs(t, err, td.gateway.runErr)
	assert.Contains(t, td.stdout.String(), "client error")
}

func TestRun_ClientConstructionError(t *testing.T) {
	src := env.NewMapSource()
	src.Set(secrets.DiscordTokenKey, "token")
	td := newTestDeps(src)
	ctorErr := errors.New("bad token format")
	td.newClient = func(types.SecretString, *bot.Handler, *slog.Logger) (gateway, error) {
		return nil, ctorErr
	}

	err := run(context.Background(), td.deps)

	require.Error(t, err)
	assert.ErrorIs(t, err, ctorErr)
}

func TestRun_ConfigError(t *testing.T) {
	td := newTestDeps(env.NewMapSource())
	cfgErr := &config.ConfigError{Type: config.ErrValidation, Message: "bad LOG_LEVEL"}
	td.loadConfig = func() (*config.Config, error) { return nil, cfgErr }

	err := run(context.Background(), td.deps)

	require.Error(t, err)
	var got *config.ConfigError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, config.ErrValidation, got.Type)
	assert.Zero(t, td.clientCalls.Load())
	assert.Empty(t, td.stdout.String())
}

func TestNewMetrics_DisabledIsNoop(t *testing.T) {
	m, err := newMetrics(context.Background(), testConfig(), slog.Default())
	require.NoError(t, err)
	assert.IsType(t, bot.NoopMetrics{}, m)
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := newLogger(buf, tt.level)
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info line"))
		})
	}
}
