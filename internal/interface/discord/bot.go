// Package discord is the Discord gateway front end of Levelington: it turns
// guild messages into XP awards and serves the slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/api/cmdroute"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/application/query"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Discord bot.
type BotConfig struct {
	// MaxConcurrentEvents bounds in-flight message handlers. Messages beyond
	// the bound are dropped, never queued.
	MaxConcurrentEvents int

	// EventTimeout bounds a single award.
	EventTimeout time.Duration

	// GracefulShutdownTimeout bounds the wait for in-flight handlers.
	GracefulShutdownTimeout time.Duration

	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MaxConcurrentEvents:     256,
		EventTimeout:            10 * time.Second,
		GracefulShutdownTimeout: 15 * time.Second,
		Logger:                  slog.Default(),
	}
}

// Recorder counts front-end activity.
type Recorder interface {
	MessageDropped()
	CommandHandled(name string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) MessageDropped()             {}
func (nopRecorder) CommandHandled(string, bool) {}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	// Commands
	AwardXP       *command.AwardXPHandler
	Setup         *command.SetupHandler
	AssignLevel   *command.AssignLevelHandler
	ChannelPolicy *command.ChannelPolicyHandler
	DeleteData    *command.DeleteDataHandler

	// Queries
	Leaderboard     *query.GetLeaderboardHandler
	MemberXP        *query.GetMemberXPHandler
	ChannelSettings *query.GetChannelSettingsHandler

	Members query.MemberDirectory

	Recorder Recorder
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Discord gateway controller.
type Bot struct {
	config BotConfig
	state  *state.State
	deps   BotDependencies
	logger *slog.Logger
	router *cmdroute.Router

	sem chan struct{}
	wg  sync.WaitGroup

	promptsMu sync.Mutex
	prompts   map[string]prompt
}

// prompt locates the interaction message showing a deletion request.
type prompt struct {
	appID discord.AppID
	token string
}

// NewBot registers gateway handlers on s.
func NewBot(s *state.State, config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.AwardXP == nil {
		return nil, errors.New("discord bot: award handler is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrentEvents <= 0 {
		config.MaxConcurrentEvents = DefaultBotConfig().MaxConcurrentEvents
	}
	if config.EventTimeout <= 0 {
		config.EventTimeout = DefaultBotConfig().EventTimeout
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}

	b := &Bot{
		config:  config,
		state:   s,
		deps:    deps,
		logger:  config.Logger.With(logger.Component("discord_bot")),
		sem:     make(chan struct{}, config.MaxConcurrentEvents),
		prompts: make(map[string]prompt),
	}
	b.router = b.newRouter()

	if deps.DeleteData != nil {
		deps.DeleteData.OnExpired(b.onDeletionExpired)
	}

	if s != nil {
		s.AddIntents(gateway.IntentGuilds | gateway.IntentGuildMessages | gateway.IntentMessageContent)
		s.AddHandler(func(ev *gateway.ReadyEvent) {
			b.logger.Info("connected to gateway", "user", ev.User.Username, "guilds", len(ev.Guilds))
		})
		s.AddHandler(b.onMessage)
		s.AddInteractionHandler(b)
	}

	return b, nil
}

// Run connects to the gateway and blocks until ctx is done, then waits for
// in-flight handlers.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("starting discord bot", "max_concurrent_events", b.config.MaxConcurrentEvents)

	err := b.state.Connect(ctx)
	b.drain()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("discord gateway: %w", err)
	}
	return nil
}

func (b *Bot) drain() {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) onMessage(ev *gateway.MessageCreateEvent) {
	msg, ok := toMessageEvent(ev)
	if !ok {
		return
	}
	channel := ev.ChannelID

	b.dispatch(func(ctx context.Context) {
		if ch, err := b.state.Channel(channel); err == nil && ch.ParentID.IsValid() {
			msg.ParentID = shared.ChannelID(ch.ParentID.String())
		}
		if _, err := b.deps.AwardXP.Handle(ctx, msg); err != nil {
			b.logger.Debug("award failed", logger.Guild(msg.CommunityID.String()), logger.Channel(msg.ChannelID.String()), "error", err)
		}
	})
}

// dispatch runs fn on its own goroutine when a slot is free and drops it
// otherwise. It reports whether fn was scheduled.
func (b *Bot) dispatch(fn func(ctx context.Context)) bool {
	select {
	case b.sem <- struct{}{}:
	default:
		b.deps.Recorder.MessageDropped()
		return false
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("panic in message handler", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.config.EventTimeout)
		defer cancel()
		fn(ctx)
	}()
	return true
}

// hasContent reports whether a message carries text, an attachment, an embed
// or a sticker.
func hasContent(m *discord.Message) bool {
	return strings.TrimSpace(m.Content) != "" ||
		len(m.Attachments) > 0 ||
		len(m.Embeds) > 0 ||
		len(m.Stickers) > 0
}

// toMessageEvent converts a guild message. Direct messages are skipped.
func toMessageEvent(ev *gateway.MessageCreateEvent) (command.MessageEvent, bool) {
	if !ev.GuildID.IsValid() {
		return command.MessageEvent{}, false
	}
	return command.MessageEvent{
		CommunityID: shared.CommunityID(ev.GuildID.String()),
		ChannelID:   shared.ChannelID(ev.ChannelID.String()),
		SenderID:    shared.MemberID(ev.Author.ID.String()),
		IsAutomated: ev.Author.Bot,
		HasContent:  hasContent(&ev.Message),
		Timestamp:   ev.Timestamp.Time(),
	}, true
}
