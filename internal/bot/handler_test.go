package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pingbot/internal/types"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, content)
	msg, _ := args.Get(0).(*discordgo.Message)
	return msg, args.Error(1)
}

type recordedCommand struct {
	command string
	result  types.MetricResult
}

type recordingMetrics struct {
	mu       sync.Mutex
	commands []recordedCommand
	readies  int
}

func (r *recordingMetrics) RecordCommand(_ context.Context, command string, result types.MetricResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, recordedCommand{command: command, result: result})
}

func (r *recordingMetrics) RecordReady(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readies++
}

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func entriesAtLevel(entries []map[string]any, level string) []map[string]any {
	var out []map[string]any
	for _, e := range entries {
		if e["level"] == level {
			out = append(out, e)
		}
	}
	return out
}

func TestHandleMessage_PingRepliesOnce(t *testing.T) {
	logger, _ := newBufferLogger()
	metrics := &recordingMetrics{}
	h := NewHandler(logger, metrics)

	sender := &mockSender{}
	sender.On("ChannelMessageSend", "chan-1", PongReply).
		Return(&discordgo.Message{ID: "reply-1"}, nil).Once()

	h.HandleMessage(sender, &discordgo.Message{ID: "msg-1", ChannelID: "chan-1", Content: "!ping"})

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "ChannelMessageSend", 1)
	assert.Equal(t, []recordedCommand{{command: PingCommand, result: types.MetricSuccess}}, metrics.commands)
}

func TestHandleMessage_OtherContentIgnored(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"trailing space", "!ping "},
		{"leading space", " !ping"},
		{"upper case", "PING"},
		{"mixed case", "!Ping"},
		{"no prefix", "ping"},
		{"longer word", "!pingpong"},
		{"empty", ""},
		{"reply text", "Pong!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newBufferLogger()
			metrics := &recordingMetrics{}
			h := NewHandler(logger, metrics)
			sender := &mockSender{}

			h.HandleMessage(sender, &discordgo.Message{ChannelID: "chan-1", Content: tt.content})

			sender.AssertNotCalled(t, "ChannelMessageSend", mock.Anything, mock.Anything)
			assert.Empty(t, metrics.commands)
		})
	}
}

func TestHandleMessage_NilMessage(t *testing.T) {
	logger, _ := newBufferLogger()
	h := NewHandler(logger, nil)
	sender := &mockSender{}

	assert.NotPanics(t, func() { h.HandleMessage(sender, nil) })
	sender.AssertNotCalled(t, "ChannelMessageSend", mock.Anything, mock.Anything)
}

func TestHandleMessage_SendFailureLogsOnce(t *testing.T) {
	logger, buf := newBufferLogger()
	metrics := &recordingMetrics{}
	h := NewHandler(logger, metrics)

	sender := &mockSender{}
	sender.On("ChannelMessageSend", "chan-9", PongReply).
		Return(nil, errors.New("HTTP 403 Forbidden")).Once()

	assert.NotPanics(t, func() {
		h.HandleMessage(sender, &discordgo.Message{ID: "msg-9", ChannelID: "chan-9", Content: PingCommand})
	})

	sender.AssertNumberOfCalls(t, "ChannelMessageSend", 1)

	errorsLogged := entriesAtLevel(logEntries(t, buf), "ERROR")
	require.Len(t, errorsLogged, 1)
	assert.Equal(t, "error sending message", errorsLogged[0]["msg"])
	assert.Equal(t, "chan-9", errorsLogged[0]["channel_id"])
	assert.Contains(t, errorsLogged[0]["error"], "403")

	assert.Equal(t, []recordedCommand{{command: PingCommand, result: types.MetricFailed}}, metrics.commands)
}

func TestHandleMessage_ConcurrentCalls(t *testing.T) {
	logger, _ := newBufferLogger()
	metrics := &recordingMetrics{}
	h := NewHandler(logger, metrics)

	sender := &mockSender{}
	sender.On("ChannelMessageSend", mock.Anything, PongReply).Return(&discordgo.Message{}, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleMessage(sender, &discordgo.Message{ChannelID: "chan", Content: PingCommand})
		}()
	}
	wg.Wait()

	sender.AssertNumberOfCalls(t, "ChannelMessageSend", n)
	assert.Len(t, metrics.commands, n)
}

func TestOnMessageCreate_IgnoresNonCommand(t *testing.T) {
	logger, _ := newBufferLogger()
	h := NewHandler(logger, nil)

	assert.NotPanics(t, func() {
		h.OnMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{Content: "hello"}})
		h.OnMessageCreate(nil, nil)
	})
}

func TestOnReady_LogsUsername(t *testing.T) {
	logger, buf := newBufferLogger()
	metrics := &recordingMetrics{}
	h := NewHandler(logger, metrics)

	h.OnReady(nil, &discordgo.Ready{
		SessionID: "sess-1",
		User:      &discordgo.User{ID: "42", Username: "pingbot"},
		Guilds:    []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}},
	})

	infos := entriesAtLevel(logEntries(t, buf), "INFO")
	require.Len(t, infos, 1)
	assert.Equal(t, "bot is connected", infos[0]["msg"])
	assert.Equal(t, "42", infos[0]["user_id"])
	assert.Equal(t, "pingbot", infos[0]["username"])
	assert.Equal(t, "sess-1", infos[0]["session_id"])
	assert.EqualValues(t, 2, infos[0]["guilds"])
	assert.Equal(t, 1, metrics.readies)
}

func TestOnReady_MissingUser(t *testing.T) {
	logger, buf := newBufferLogger()
	metrics := &recordingMetrics{}
	h := NewHandler(logger, metrics)

	h.OnReady(nil, &discordgo.Ready{})

	assert.Len(t, entriesAtLevel(logEntries(t, buf), "WARN"), 1)
	assert.Zero(t, metrics.readies)
}
