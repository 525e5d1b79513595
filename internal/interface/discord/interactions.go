package discord

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/api/cmdroute"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/json/option"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/application/query"
	"github.com/ShenPrime/Levelington/internal/domain/leaderboard"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/internal/interface/discord/presenter"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

// handlerFunc is a slash command handler that reports failures as errors.
type handlerFunc func(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error)

func (b *Bot) newRouter() *cmdroute.Router {
	r := cmdroute.NewRouter()
	if b.state != nil {
		r.Use(cmdroute.Deferrable(b.state, cmdroute.DeferOpts{}))
	}

	r.AddFunc(CmdSetup, b.instrument(CmdSetup, b.handleSetup))
	r.AddFunc(CmdAssignLevel, b.instrument(CmdAssignLevel, b.handleAssignLevel))
	r.AddFunc(CmdIgnoreChannel, b.instrument(CmdIgnoreChannel, b.handleIgnoreChannel))
	r.AddFunc(CmdXPMultiplier, b.instrument(CmdXPMultiplier, b.handleXPMultiplier))
	r.AddFunc(CmdDeleteData, b.instrument(CmdDeleteData, b.handleDeleteData))
	r.AddFunc(CmdRank, b.instrument(CmdRank, b.handleRank))
	r.AddFunc(CmdXP, b.instrument(CmdXP, b.handleXP))
	r.AddFunc(CmdLeaderboard, b.instrument(CmdLeaderboard, b.handleLeaderboard))
	r.AddFunc(CmdChannelConfig, b.instrument(CmdChannelConfig, b.handleChannelSettings))
	return r
}

// HandleInteraction routes buttons to the deletion prompt and everything
// else to the command router.
func (b *Bot) HandleInteraction(ev *discord.InteractionEvent) *api.InteractionResponse {
	if btn, ok := ev.Data.(*discord.ButtonInteraction); ok {
		return b.handleButton(context.Background(), ev, string(btn.CustomID))
	}
	return b.router.HandleInteraction(ev)
}

func (b *Bot) instrument(name string, fn handlerFunc) cmdroute.CommandHandlerFunc {
	return func(ctx context.Context, data cmdroute.CommandData) *api.InteractionResponseData {
		if !data.Event.GuildID.IsValid() {
			b.deps.Recorder.CommandHandled(name, false)
			return ephemeral(presenter.MsgGuildOnly)
		}

		res, err := fn(ctx, data)
		b.deps.Recorder.CommandHandled(name, err == nil)
		if err != nil {
			return b.errorReply(name, data.Event, err)
		}
		return res
	}
}

// errorReply maps a handler error to a user-facing message. Details only go
// to the logs.
func (b *Bot) errorReply(name string, ev *discord.InteractionEvent, err error) *api.InteractionResponseData {
	log := b.logger.With("command", name, logger.Guild(ev.GuildID.String()), logger.Member(ev.SenderID().String()))

	var domainErr *shared.DomainError
	switch {
	case shared.IsNotProvisioned(err):
		return ephemeral(presenter.MsgNotSetUp)
	case errors.Is(err, shared.ErrAutomatedTarget):
		return ephemeral(presenter.MsgBotTarget)
	case shared.IsEntityGone(err):
		log.Debug("command target vanished", "error", err)
		return ephemeral(presenter.MsgUnknownChannel)
	case shared.IsValidation(err) && errors.As(err, &domainErr):
		return ephemeral(domainErr.Message)
	default:
		log.Error("command failed", "error", err)
		return ephemeral(presenter.MsgGenericFailure)
	}
}

func ephemeral(content string) *api.InteractionResponseData {
	return &api.InteractionResponseData{
		Content: option.NewNullableString(content),
		Flags:   discord.EphemeralMessage,
	}
}

func embeds(flags discord.MessageFlags, e ...discord.Embed) *api.InteractionResponseData {
	return &api.InteractionResponseData{
		Embeds: &e,
		Flags:  flags,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTION HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func community(data cmdroute.CommandData) shared.CommunityID {
	return shared.CommunityID(data.Event.GuildID.String())
}

func actor(data cmdroute.CommandData) shared.MemberID {
	return shared.MemberID(data.Event.SenderID().String())
}

func snowflakeOption(data cmdroute.CommandData, name string) (string, error) {
	sf, err := data.Options.Find(name).SnowflakeValue()
	if err != nil || !sf.IsValid() {
		return "", shared.NewDomainError("discord", "Option", shared.ErrInvalidInput, "missing option "+name)
	}
	return sf.String(), nil
}

func (b *Bot) displayName(ctx context.Context, c shared.CommunityID, m shared.MemberID) string {
	if b.deps.Members == nil {
		return query.FallbackName(m)
	}
	member, err := b.deps.Members.FetchMember(ctx, c, m)
	if err != nil {
		return query.FallbackName(m)
	}
	return member.DisplayName
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) handleSetup(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	channel, err := snowflakeOption(data, "level_up_channel")
	if err != nil {
		return nil, err
	}

	err = b.deps.Setup.Handle(ctx, command.SetupCommand{
		CommunityID:         community(data),
		ActorID:             actor(data),
		AnnouncementChannel: shared.ChannelID(channel),
	})
	if err != nil {
		return nil, err
	}

	sf, _ := discord.ParseSnowflake(channel)
	return embeds(discord.EphemeralMessage, presenter.SetupComplete(discord.ChannelID(sf))), nil
}

func (b *Bot) handleAssignLevel(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	target, err := snowflakeOption(data, "user")
	if err != nil {
		return nil, err
	}
	level, err := data.Options.Find("level").IntValue()
	if err != nil {
		return nil, shared.NewDomainError("discord", "Option", shared.ErrInvalidInput, "missing option level")
	}

	c := community(data)
	member, err := b.deps.Members.FetchMember(ctx, c, shared.MemberID(target))
	if err != nil {
		return nil, err
	}

	res, err := b.deps.AssignLevel.Handle(ctx, command.AssignLevelCommand{
		CommunityID:       c,
		ActorID:           actor(data),
		TargetID:          member.ID,
		TargetIsAutomated: member.IsAutomated,
		Level:             int(level),
	})
	if err != nil {
		return nil, err
	}
	return embeds(discord.EphemeralMessage, presenter.LevelAssigned(member.DisplayName, res)), nil
}

func (b *Bot) channelTarget(data cmdroute.CommandData) (command.ChannelTarget, error) {
	channel, err := snowflakeOption(data, "channel")
	if err != nil {
		return command.ChannelTarget{}, err
	}
	return command.ChannelTarget{
		CommunityID: community(data),
		ActorID:     actor(data),
		ChannelID:   shared.ChannelID(channel),
	}, nil
}

func (b *Bot) handleIgnoreChannel(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	target, err := b.channelTarget(data)
	if err != nil {
		return nil, err
	}
	res, err := b.deps.ChannelPolicy.ToggleIgnore(ctx, target)
	if err != nil {
		return nil, err
	}
	return embeds(discord.EphemeralMessage, presenter.IgnoreToggled(res)), nil
}

func (b *Bot) handleXPMultiplier(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	target, err := b.channelTarget(data)
	if err != nil {
		return nil, err
	}
	value, err := data.Options.Find("multiplier").FloatValue()
	if err != nil {
		return nil, shared.NewDomainError("discord", "Option", shared.ErrInvalidInput, "missing option multiplier")
	}
	res, err := b.deps.ChannelPolicy.SetMultiplier(ctx, target, value)
	if err != nil {
		return nil, err
	}
	return embeds(discord.EphemeralMessage, presenter.MultiplierUpdated(res)), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE SERVER DATA
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) handleDeleteData(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	req, err := b.deps.DeleteData.Request(ctx, community(data), actor(data))
	if err != nil {
		return nil, err
	}

	b.promptsMu.Lock()
	b.prompts[req.Token] = prompt{appID: data.Event.AppID, token: data.Event.Token}
	b.promptsMu.Unlock()

	res := embeds(discord.EphemeralMessage, presenter.DangerZone(time.Until(req.ExpiresAt).Round(time.Second)))
	res.Components = &discord.ContainerComponents{
		&discord.ActionRowComponent{
			&discord.ButtonComponent{
				Label:    "Confirm Delete",
				CustomID: discord.ComponentID(ButtonConfirmDelete + ":" + req.Token),
				Style:    discord.DangerButtonStyle(),
			},
			&discord.ButtonComponent{
				Label:    "Cancel",
				CustomID: discord.ComponentID(ButtonCancelDelete + ":" + req.Token),
				Style:    discord.SecondaryButtonStyle(),
			},
		},
	}
	return res, nil
}

// parseButton splits "<action>:<token>".
func parseButton(customID string) (action, token string, ok bool) {
	action, token, ok = strings.Cut(customID, ":")
	if !ok || token == "" {
		return "", "", false
	}
	switch action {
	case ButtonConfirmDelete, ButtonCancelDelete:
		return action, token, true
	}
	return "", "", false
}

func (b *Bot) handleButton(ctx context.Context, ev *discord.InteractionEvent, customID string) *api.InteractionResponse {
	action, token, ok := parseButton(customID)
	if !ok {
		return nil
	}
	who := shared.MemberID(ev.SenderID().String())

	var err error
	if action == ButtonConfirmDelete {
		_, err = b.deps.DeleteData.Confirm(ctx, token, who)
	} else {
		_, err = b.deps.DeleteData.Cancel(ctx, token, who)
	}

	b.deps.Recorder.CommandHandled(action, err == nil)

	switch {
	case err == nil:
		b.forgetPrompt(token)
		if action == ButtonConfirmDelete {
			return settle(presenter.MsgDeleted)
		}
		return settle(presenter.MsgDeleteCanceled)
	case errors.Is(err, shared.ErrConfirmationOwner):
		return &api.InteractionResponse{Type: api.MessageInteractionWithSource, Data: ephemeral(presenter.MsgNotYourButton)}
	case errors.Is(err, shared.ErrConfirmationGone):
		b.forgetPrompt(token)
		return settle(presenter.MsgDeleteTimedOut)
	default:
		b.logger.Error("deletion button failed", logger.Guild(ev.GuildID.String()), "action", action, "error", err)
		return &api.InteractionResponse{Type: api.MessageInteractionWithSource, Data: ephemeral(presenter.MsgGenericFailure)}
	}
}

// settle replaces the prompt with a plain message and removes its buttons.
func settle(content string) *api.InteractionResponse {
	return &api.InteractionResponse{
		Type: api.UpdateMessage,
		Data: &api.InteractionResponseData{
			Content:    option.NewNullableString(content),
			Embeds:     &[]discord.Embed{},
			Components: &discord.ContainerComponents{},
		},
	}
}

func (b *Bot) forgetPrompt(token string) (prompt, bool) {
	b.promptsMu.Lock()
	defer b.promptsMu.Unlock()
	p, ok := b.prompts[token]
	delete(b.prompts, token)
	return p, ok
}

func (b *Bot) onDeletionExpired(req command.DeletionRequest) {
	p, ok := b.forgetPrompt(req.Token)
	if !ok || b.state == nil {
		return
	}

	_, err := b.state.EditInteractionResponse(p.appID, p.token, api.EditInteractionResponseData{
		Content:    option.NewNullableString(presenter.MsgDeleteTimedOut),
		Embeds:     &[]discord.Embed{},
		Components: &discord.ContainerComponents{},
	})
	if err != nil {
		b.logger.Warn("failed to close expired deletion prompt", logger.Guild(req.CommunityID.String()), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) handleRank(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	res, err := b.deps.MemberXP.Handle(ctx, community(data), actor(data))
	if errors.Is(err, shared.ErrMemberNotFound) {
		return ephemeral(presenter.MsgNoXPSelf), nil
	}
	if err != nil {
		return nil, err
	}
	return embeds(0, presenter.Rank(data.Event.Sender().Username, res)), nil
}

func (b *Bot) handleXP(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	target, err := snowflakeOption(data, "user")
	if err != nil {
		return nil, err
	}
	c, m := community(data), shared.MemberID(target)

	res, err := b.deps.MemberXP.Handle(ctx, c, m)
	if errors.Is(err, shared.ErrMemberNotFound) {
		return ephemeral(presenter.NoXPFor(b.displayName(ctx, c, m))), nil
	}
	if err != nil {
		return nil, err
	}
	return embeds(0, presenter.XPStats(b.displayName(ctx, c, m), res)), nil
}

func (b *Bot) handleLeaderboard(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	res, err := b.deps.Leaderboard.Handle(ctx, query.GetLeaderboardQuery{
		CommunityID: community(data),
		Limit:       leaderboard.DefaultSize,
		SyncRole:    true,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return ephemeral(presenter.MsgLeaderboardNil), nil
	}
	return embeds(0, presenter.Leaderboard(b.guildName(data.Event.GuildID), res)), nil
}

func (b *Bot) guildName(id discord.GuildID) string {
	if b.state != nil {
		if g, err := b.state.Guild(id); err == nil {
			return g.Name
		}
	}
	return "this server"
}

func (b *Bot) handleChannelSettings(ctx context.Context, data cmdroute.CommandData) (*api.InteractionResponseData, error) {
	res, err := b.deps.ChannelSettings.Handle(ctx, community(data))
	if err != nil {
		return nil, err
	}
	return embeds(discord.EphemeralMessage, presenter.ChannelSettings(res)), nil
}
