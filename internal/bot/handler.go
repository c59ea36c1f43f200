// Package bot holds the gateway event callbacks and the client that connects
// them to Discord. Connection management, sharding, reconnection and event
// dispatch belong to discordgo; this package only supplies callback bodies.
package bot

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"pingbot/internal/types"
)

const (
	// PingCommand is the only recognised input. Matching is exact.
	PingCommand = "!ping"
	// PongReply is sent in response to PingCommand.
	PongReply = "Pong!"
)

// MessageSender is the subset of *discordgo.Session used to reply.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Handler implements the ready and message callbacks. It holds no mutable
// state, so discordgo may invoke it from several goroutines at once.
type Handler struct {
	logger  *slog.Logger
	metrics Metrics
}

// NewHandler creates a Handler. A nil metrics disables metric publishing.
func NewHandler(logger *slog.Logger, metrics Metrics) *Handler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Handler{
		logger:  logger,
		metrics: metrics,
	}
}

// OnReady runs once per READY payload, i.e. once per successful gateway
// connection of a shard.
func (h *Handler) OnReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		h.logger.Warn("ready event without user data")
		return
	}

	h.logger.Info("bot is connected",
		"username", r.User.Username,
		"user_id", r.User.ID,
		"session_id", r.SessionID,
		"guilds", len(r.Guilds),
	)
	h.metrics.RecordReady(context.Background())
}

// OnMessageCreate is registered with discordgo for MESSAGE_CREATE events.
func (h *Handler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil {
		return
	}
	h.HandleMessage(s, m.Message)
}

// HandleMessage replies PongReply to a message whose content is exactly
// PingCommand. A failed send is logged and dropped: no retry, no
// propagation.
func (h *Handler) HandleMessage(sender MessageSender, msg *discordgo.Message) {
	if msg == nil || msg.Content != PingCommand {
		return
	}

	if _, err := sender.ChannelMessageSend(msg.ChannelID, PongReply); err != nil {
		h.logger.Error("error sending message",
			"channel_id", msg.ChannelID,
			"message_id", msg.ID,
			"error", err,
		)
		h.metrics.RecordCommand(context.Background(), PingCommand, types.MetricFailed)
		return
	}

	h.logger.Debug("replied to ping",
		"channel_id", msg.ChannelID,
		"message_id", msg.ID,
	)
	h.metrics.RecordCommand(context.Background(), PingCommand, types.MetricSuccess)
}
