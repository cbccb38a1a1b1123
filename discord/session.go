// Package discord adapts a discordgo gateway session to Warden's
// platform-neutral packages.
//
// Session is the single explicit connection value: it is the supervisor's
// Connector, the synchronizer's Publisher, the watcher's Notifier, the
// linker's Replier, the command handlers' platform.Platform and the HTTP
// status source. Inbound gateway events are translated and handed to a
// Handler.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/linker"
)

// Intents requested from the gateway.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

// Handler receives translated inbound events.
type Handler interface {
	// OnReady is called once per gateway identify.
	OnReady(ctx context.Context)

	// OnInvocation is called for every slash-command interaction.
	OnInvocation(ctx context.Context, inv *command.Invocation)

	// OnMessage is called for every guild message.
	OnMessage(ctx context.Context, msg linker.Message)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHandler sets the inbound event handler.
func WithHandler(h Handler) Option {
	return func(s *Session) { s.handler = h }
}

// Session wraps a discordgo session bound to one application and guild.
type Session struct {
	dg      *discordgo.Session
	appID   string
	guildID string
	handler Handler
	logger  *slog.Logger

	mu     sync.RWMutex
	ctx    context.Context
	botID  string
	botTag string

	opened atomic.Bool
}

// New creates a session for the bot token. It does not connect.
func New(token, appID, guildID string, opts ...Option) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	dg.Identify.Intents = Intents

	s := &Session{
		dg:      dg,
		appID:   appID,
		guildID: guildID,
		logger:  slog.Default(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onInteraction)
	dg.AddHandler(s.onMessage)
	dg.AddHandler(s.onDisconnect)
	dg.AddHandler(s.onResumed)
	return s, nil
}

// SetHandler replaces the inbound event handler. Call before Open.
func (s *Session) SetHandler(h Handler) { s.handler = h }

// Open connects to the gateway. Events are handled with ctx until Close.
func (s *Session) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	s.opened.Store(true)
	return nil
}

// Close disconnects from the gateway.
func (s *Session) Close() error {
	if !s.opened.Swap(false) {
		return nil
	}
	if err := s.dg.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return nil
}

// GuildID returns the configured guild.
func (s *Session) GuildID() string { return s.guildID }

func (s *Session) eventContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// ──────────────────────────────────────────────────
// Gateway events
// ──────────────────────────────────────────────────

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.mu.Lock()
	if r.User != nil {
		s.botID = r.User.ID
		s.botTag = Tag(r.User)
	}
	s.mu.Unlock()

	ctx := s.eventContext()
	s.logger.InfoContext(ctx, "gateway ready",
		"bot", s.BotTag(),
		"guilds", len(r.Guilds),
		"session_id", r.SessionID,
	)
	if s.handler != nil {
		s.handler.OnReady(ctx)
	}
}

func (s *Session) onInteraction(dg *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand || s.handler == nil {
		return
	}

	data := ic.ApplicationCommandData()
	inv := &command.Invocation{
		ID:        id.NewInvocationID(),
		Command:   data.Name,
		Caller:    caller(ic.Member, ic.User),
		GuildID:   ic.GuildID,
		ChannelID: ic.ChannelID,
		Options:   Options(data.Options),
		Responder: NewResponder(dg, ic.Interaction),
	}
	s.handler.OnInvocation(s.eventContext(), inv)
}

func (s *Session) onMessage(_ *discordgo.Session, mc *discordgo.MessageCreate) {
	if s.handler == nil || mc.Author == nil {
		return
	}
	s.handler.OnMessage(s.eventContext(), linker.Message{
		ID:        mc.ID,
		ChannelID: mc.ChannelID,
		GuildID:   mc.GuildID,
		Content:   mc.Content,
		AuthorBot: mc.Author.Bot,
	})
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.logger.WarnContext(s.eventContext(), "gateway disconnected, reconnecting")
}

func (s *Session) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	s.logger.InfoContext(s.eventContext(), "gateway session resumed")
}

// ──────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────

// BotTag returns the logged-in bot's tag, or "" before ready.
func (s *Session) BotTag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botTag
}

// GuildCount returns the number of guilds in the session state.
func (s *Session) GuildCount() int {
	if s.dg.State == nil {
		return 0
	}
	s.dg.State.RLock()
	defer s.dg.State.RUnlock()
	return len(s.dg.State.Guilds)
}
