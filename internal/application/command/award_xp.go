// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/leveling"
	"github.com/ShenPrime/Levelington/internal/domain/policy"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Runs once per inbound message: eligibility, channel policy, cooldown,
// multiplier, atomic award and the single-winner level transition.
// ══════════════════════════════════════════════════════════════════════════════

// MessageEvent is the platform-neutral view of one inbound message.
type MessageEvent struct {
	CommunityID shared.CommunityID
	ChannelID   shared.ChannelID

	// ParentID is the channel's category, empty when it has none.
	ParentID shared.ChannelID

	SenderID    shared.MemberID
	IsAutomated bool

	// HasContent is true when the message carries text, an attachment, an
	// embed or a sticker.
	HasContent bool

	// Timestamp is when the message was received. Zero means now.
	Timestamp time.Time
}

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	OutcomeFiltered       Outcome = "filtered"
	OutcomeNotProvisioned Outcome = "not_provisioned"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeCooldown       Outcome = "cooldown"
	OutcomeAwarded        Outcome = "awarded"
	OutcomeLeveledUp      Outcome = "leveled_up"
	OutcomeFailed         Outcome = "failed"
)

// AwardResult describes what the pipeline did with a message.
type AwardResult struct {
	Outcome   Outcome
	Delta     int64
	XP        int64
	Level     int
	LeveledUp bool
}

// AwardXPConfig contains configuration for the pipeline.
type AwardXPConfig struct {
	Cooldown time.Duration
	MinXP    int
	MaxXP    int

	// SetupNoticeInterval bounds how often a message in an unprovisioned
	// community is reported at Warn.
	SetupNoticeInterval time.Duration
}

// DefaultAwardXPConfig returns the standard award rules.
func DefaultAwardXPConfig() AwardXPConfig {
	return AwardXPConfig{
		Cooldown:            30 * time.Second,
		MinXP:               15,
		MaxXP:               25,
		SetupNoticeInterval: time.Hour,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles MessageEvents.
type AwardXPHandler struct {
	store     ledger.Store
	publisher shared.EventPublisher
	recorder  AwardRecorder
	logger    *slog.Logger
	config    AwardXPConfig

	// setupNotices holds communities already reported as unprovisioned.
	setupNotices *gocache.Cache

	now  func() time.Time
	roll func(min, max int) int
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(
	store ledger.Store,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config AwardXPConfig,
) *AwardXPHandler {
	defaults := DefaultAwardXPConfig()
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	if config.MinXP <= 0 || config.MaxXP < config.MinXP {
		config.MinXP, config.MaxXP = defaults.MinXP, defaults.MaxXP
	}
	if config.SetupNoticeInterval <= 0 {
		config.SetupNoticeInterval = defaults.SetupNoticeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AwardXPHandler{
		store:        store,
		publisher:    publisher,
		logger:       logger.With("handler", "award_xp"),
		config:       config,
		setupNotices: gocache.New(config.SetupNoticeInterval, 2*config.SetupNoticeInterval),
		now:          time.Now,
		roll: func(min, max int) int {
			return min + rand.IntN(max-min+1)
		},
	}
}

// WithRecorder attaches an outcome recorder.
func (h *AwardXPHandler) WithRecorder(r AwardRecorder) *AwardXPHandler {
	h.recorder = r
	return h
}

// WithRoll replaces the uniform base-XP roll.
func (h *AwardXPHandler) WithRoll(roll func(min, max int) int) *AwardXPHandler {
	h.roll = roll
	return h
}

// Handle runs the pipeline for one message. Filtered, ignored, cooldown and
// not-provisioned messages are not errors; storage failures are returned with
// OutcomeFailed.
func (h *AwardXPHandler) Handle(ctx context.Context, ev MessageEvent) (*AwardResult, error) {
	result, err := h.handle(ctx, ev)
	if h.recorder != nil {
		h.recorder.AwardOutcome(result.Outcome, result.Delta)
	}
	return result, err
}

func (h *AwardXPHandler) handle(ctx context.Context, ev MessageEvent) (*AwardResult, error) {
	// Step 1: eligibility
	if ev.IsAutomated || !ev.HasContent || ev.SenderID.IsEmpty() {
		return &AwardResult{Outcome: OutcomeFiltered}, nil
	}

	settings, err := h.store.Settings(ctx, ev.CommunityID)
	if err != nil {
		if shared.IsNotProvisioned(err) {
			h.reportUnprovisioned(ev.CommunityID)
			return &AwardResult{Outcome: OutcomeNotProvisioned}, nil
		}
		return h.fail(ev, "read settings", err)
	}

	// Step 2: channel policy
	pol, err := policy.FromSettings(settings)
	if err != nil {
		return h.fail(ev, "decode channel policy", err)
	}
	disposition := pol.Resolve(ev.ChannelID, ev.ParentID)
	if disposition.Ignored {
		return &AwardResult{Outcome: OutcomeIgnored}, nil
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = h.now()
	}

	// Step 3: cooldown fast path. The store re-checks atomically.
	current, err := h.store.Member(ctx, ev.CommunityID, ev.SenderID)
	switch {
	case err == nil:
		if current.CooldownRemaining(now, h.config.Cooldown) > 0 {
			return &AwardResult{Outcome: OutcomeCooldown, XP: current.XP, Level: current.Level}, nil
		}
	case errors.Is(err, shared.ErrMemberNotFound):
	default:
		return h.fail(ev, "read member", err)
	}

	// Steps 4-5: multiplier and roll
	delta := RollXP(h.roll(h.config.MinXP, h.config.MaxXP), disposition.Multiplier)

	// Step 6: atomic award
	awarded, err := h.store.AwardXP(ctx, ev.CommunityID, ev.SenderID, delta, now, h.config.Cooldown)
	if err != nil {
		if shared.IsCooldown(err) {
			return &AwardResult{Outcome: OutcomeCooldown}, nil
		}
		return h.fail(ev, "award xp", err)
	}

	result := &AwardResult{
		Outcome: OutcomeAwarded,
		Delta:   delta,
		XP:      awarded.XP,
		Level:   awarded.Level,
	}
	h.publish(shared.NewXPAwardedEvent(ev.CommunityID, ev.SenderID, ev.ChannelID, delta, awarded.XP))

	// Step 7: level transition, single step, single winner
	next, ok := leveling.NextLevel(awarded.XP, awarded.Level)
	if !ok {
		return result, nil
	}

	won, err := h.store.AdvanceLevel(ctx, ev.CommunityID, ev.SenderID, awarded.Level, next)
	if err != nil {
		return h.fail(ev, "advance level", err)
	}
	if !won {
		return result, nil
	}

	result.Outcome = OutcomeLeveledUp
	result.Level = next
	result.LeveledUp = true

	h.logger.Info("member leveled up",
		"guild_id", ev.CommunityID,
		"user_id", ev.SenderID,
		"level", next,
		"xp", awarded.XP,
	)
	h.publish(shared.NewLevelUpEvent(ev.CommunityID, ev.SenderID, ev.ChannelID, awarded.Level, next, awarded.XP))

	return result, nil
}

// reportUnprovisioned warns once per community per SetupNoticeInterval.
func (h *AwardXPHandler) reportUnprovisioned(community shared.CommunityID) {
	if err := h.setupNotices.Add(string(community), struct{}{}, gocache.DefaultExpiration); err != nil {
		h.logger.Debug("message in unprovisioned community", "guild_id", community)
		return
	}
	h.logger.Warn("setup required: community has no ledger, run /setup_levelington",
		"guild_id", community,
	)
}

func (h *AwardXPHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"error", err,
		)
	}
}

func (h *AwardXPHandler) fail(ev MessageEvent, step string, err error) (*AwardResult, error) {
	h.logger.Error("award pipeline failed",
		"guild_id", ev.CommunityID,
		"user_id", ev.SenderID,
		"channel_id", ev.ChannelID,
		"step", step,
		"error", err,
	)
	return &AwardResult{Outcome: OutcomeFailed}, fmt.Errorf("award_xp: %s: %w", step, err)
}

// RollXP scales a base roll by multiplier, rounding half away from zero.
// A positive multiplier never yields less than 1 XP.
func RollXP(base int, multiplier float64) int64 {
	delta := int64(math.Round(float64(base) * multiplier))
	if delta < 1 && multiplier > 0 {
		delta = 1
	}
	return delta
}
