// Package discord adapts the Discord REST API (through arikawa's state
// cache) to the role, channel and announcement ports of the application
// layer.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/httputil"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/circuitbreaker"
	"github.com/ShenPrime/Levelington/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is the subset of *state.State the client calls.
type Session interface {
	Channel(id discord.ChannelID) (*discord.Channel, error)
	Channels(guildID discord.GuildID) ([]discord.Channel, error)
	Roles(guildID discord.GuildID) ([]discord.Role, error)
	CreateRole(guildID discord.GuildID, data api.CreateRoleData) (*discord.Role, error)
	Member(guildID discord.GuildID, userID discord.UserID) (*discord.Member, error)
	AddRole(guildID discord.GuildID, userID discord.UserID, roleID discord.RoleID, data api.AddRoleData) error
	RemoveRole(guildID discord.GuildID, userID discord.UserID, roleID discord.RoleID, reason api.AuditLogReason) error
	SendEmbeds(channelID discord.ChannelID, embeds ...discord.Embed) (*discord.Message, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements command.RoleManager, command.ChannelDirectory,
// query.MemberDirectory, query.ChannelLister and eventhandler.Announcer.
type Client struct {
	session func(ctx context.Context) Session
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewClient wraps an arikawa state.
func NewClient(s *state.State, logger *slog.Logger) *Client {
	return newClient(func(ctx context.Context) Session { return s.WithContext(ctx) }, logger)
}

func newClient(session func(ctx context.Context) Session, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "discord_client")

	return &Client{
		session: session,
		breaker: circuitbreaker.DiscordBreaker(countsAgainstCircuit, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		retrier: retry.PlatformRetrier(isTransient, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying discord read", "attempt", attempt, "delay", delay, "error", err)
		})),
		logger: logger,
	}
}

// read runs an idempotent request with retries inside the breaker.
func read[T any](ctx context.Context, c *Client, fn func(Session) (T, error)) (T, error) {
	return retry.DoWithData(ctx, c.retrier, func(ctx context.Context) (T, error) {
		return circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) (T, error) {
			return fn(c.session(ctx))
		})
	})
}

// write runs a mutating request once inside the breaker.
func (c *Client) write(ctx context.Context, fn func(Session) error) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return fn(c.session(ctx))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func httpStatus(err error) int {
	var herr *httputil.HTTPError
	if errors.As(err, &herr) {
		return herr.Status
	}
	return 0
}

func isGone(err error) bool {
	switch httpStatus(err) {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return false
	}
	status := httpStatus(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func countsAgainstCircuit(err error) bool {
	status := httpStatus(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

// mapError wraps not-found answers as shared.ErrGone and everything else as
// shared.ErrExternalService.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isGone(err) {
		return shared.WrapError("platform", op, shared.ErrGone, "entity no longer exists", err)
	}
	return shared.WrapError("platform", op, shared.ErrExternalService, "discord request failed", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// ID CONVERSION
// ══════════════════════════════════════════════════════════════════════════════

func snowflake(kind, id string) (discord.Snowflake, error) {
	sf, err := discord.ParseSnowflake(id)
	if err != nil || !sf.IsValid() {
		return 0, fmt.Errorf("%w: %s %q", shared.ErrInvalidID, kind, id)
	}
	return sf, nil
}

func guildID(c shared.CommunityID) (discord.GuildID, error) {
	sf, err := snowflake("guild", string(c))
	return discord.GuildID(sf), err
}

func userID(m shared.MemberID) (discord.UserID, error) {
	sf, err := snowflake("user", string(m))
	return discord.UserID(sf), err
}

func channelID(ch shared.ChannelID) (discord.ChannelID, error) {
	sf, err := snowflake("channel", string(ch))
	return discord.ChannelID(sf), err
}
