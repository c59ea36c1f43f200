package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"pingbot/internal/types"
)

// gatewayIntents are the events the bot subscribes to. MessageContent is a
// privileged intent and must be enabled for the application in the Discord
// developer portal, otherwise guild messages arrive with empty content.
const gatewayIntents = discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

var errGatewayNotReady = errors.New("gateway session is not ready")

// session is the subset of *discordgo.Session the client drives.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// Client owns one gateway session (a single shard) and doubles as the
// health probe for it.
type Client struct {
	session session
	logger  *slog.Logger
	ready   atomic.Bool
}

// NewClient builds a discordgo session for token and attaches handler. No
// network activity happens until Run.
func NewClient(token types.SecretString, handler *Handler, logger *slog.Logger) (*Client, error) {
	s, err := discordgo.New("Bot " + token.Unmask())
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = gatewayIntents
	s.ShouldReconnectOnError = true

	return newClientWithSession(s, handler, logger), nil
}

func newClientWithSession(s session, handler *Handler, logger *slog.Logger) *Client {
	c := &Client{
		session: s,
		logger:  logger,
	}

	s.AddHandler(handler.OnReady)
	s.AddHandler(handler.OnMessageCreate)

	s.AddHandler(c.onReady)
	s.AddHandler(c.onResumed)
	s.AddHandler(c.onDisconnect)

	return c
}

// Run opens the gateway connection and blocks until ctx is cancelled, then
// closes it. Reconnects in between are handled by discordgo.
func (c *Client) Run(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening gateway connection: %w", err)
	}
	c.logger.Info("gateway connection opened")

	<-ctx.Done()

	c.logger.Info("closing gateway connection")
	c.ready.Store(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("closing gateway connection: %w", err)
	}
	return nil
}

// Name implements health.Probe.
func (c *Client) Name() string {
	return "discord_gateway"
}

// Check implements health.Probe. It fails between a disconnect and the next
// READY or RESUMED event.
func (c *Client) Check(_ context.Context) error {
	if !c.ready.Load() {
		return errGatewayNotReady
	}
	return nil
}

func (c *Client) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	c.ready.Store(true)
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.ready.Store(true)
	c.logger.Info("gateway session resumed")
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.ready.Store(false)
	c.logger.Warn("gateway disconnected, waiting for reconnect")
}
