package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventXPAwarded            EventType = "progress.xp_awarded"
	EventLevelUp              EventType = "progress.level_up"
	EventLevelAssigned        EventType = "progress.level_assigned"
	EventTopRoleChanged       EventType = "leaderboard.top_role_changed"
	EventCommunityProvisioned EventType = "community.provisioned"
	EventCommunityDeleted     EventType = "community.deleted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted after a successful award.
type XPAwardedEvent struct {
	BaseEvent
	CommunityID CommunityID `json:"community_id"`
	MemberID    MemberID    `json:"member_id"`
	ChannelID   ChannelID   `json:"channel_id"`
	Delta       int64       `json:"delta"`
	TotalXP     int64       `json:"total_xp"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"community_id": e.CommunityID,
		"member_id":    e.MemberID,
		"channel_id":   e.ChannelID,
		"delta":        e.Delta,
		"total_xp":     e.TotalXP,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(community CommunityID, member MemberID, channel ChannelID, delta, total int64) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:   NewBaseEvent(EventXPAwarded, string(community)+":"+string(member)),
		CommunityID: community,
		MemberID:    member,
		ChannelID:   channel,
		Delta:       delta,
		TotalXP:     total,
	}
}

// LevelUpEvent is emitted once per level transition, after the new level is
// persisted. ChannelID is the channel the triggering message was sent in.
type LevelUpEvent struct {
	BaseEvent
	CommunityID CommunityID `json:"community_id"`
	MemberID    MemberID    `json:"member_id"`
	ChannelID   ChannelID   `json:"channel_id"`
	OldLevel    int         `json:"old_level"`
	NewLevel    int         `json:"new_level"`
	TotalXP     int64       `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"community_id": e.CommunityID,
		"member_id":    e.MemberID,
		"channel_id":   e.ChannelID,
		"old_level":    e.OldLevel,
		"new_level":    e.NewLevel,
		"total_xp":     e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(community CommunityID, member MemberID, channel ChannelID, oldLevel, newLevel int, total int64) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:   NewBaseEvent(EventLevelUp, string(community)+":"+string(member)),
		CommunityID: community,
		MemberID:    member,
		ChannelID:   channel,
		OldLevel:    oldLevel,
		NewLevel:    newLevel,
		TotalXP:     total,
	}
}

// LevelAssignedEvent is emitted when an administrator overrides a level.
type LevelAssignedEvent struct {
	BaseEvent
	CommunityID CommunityID `json:"community_id"`
	MemberID    MemberID    `json:"member_id"`
	Level       int         `json:"level"`
	XP          int64       `json:"xp"`
}

// Payload implements Event interface.
func (e LevelAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"community_id": e.CommunityID,
		"member_id":    e.MemberID,
		"level":        e.Level,
		"xp":           e.XP,
	}
}

// NewLevelAssignedEvent creates a new LevelAssignedEvent.
func NewLevelAssignedEvent(community CommunityID, member MemberID, level int, xp int64) LevelAssignedEvent {
	return LevelAssignedEvent{
		BaseEvent:   NewBaseEvent(EventLevelAssigned, string(community)+":"+string(member)),
		CommunityID: community,
		MemberID:    member,
		Level:       level,
		XP:          xp,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// TopRoleChangedEvent is emitted when the top-role holder pointer changes.
// An empty NewHolder means the role is currently unassigned.
type TopRoleChangedEvent struct {
	BaseEvent
	CommunityID    CommunityID `json:"community_id"`
	PreviousHolder MemberID    `json:"previous_holder"`
	NewHolder      MemberID    `json:"new_holder"`
}

// Payload implements Event interface.
func (e TopRoleChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"community_id":    e.CommunityID,
		"previous_holder": e.PreviousHolder,
		"new_holder":      e.NewHolder,
	}
}

// NewTopRoleChangedEvent creates a new TopRoleChangedEvent.
func NewTopRoleChangedEvent(community CommunityID, previous, next MemberID) TopRoleChangedEvent {
	return TopRoleChangedEvent{
		BaseEvent:      NewBaseEvent(EventTopRoleChanged, string(community)),
		CommunityID:    community,
		PreviousHolder: previous,
		NewHolder:      next,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Community Events
// ═══════════════════════════════════════════════════════════════════════════

// CommunityEvent is emitted on provisioning and teardown.
type CommunityEvent struct {
	BaseEvent
	CommunityID CommunityID `json:"community_id"`
	ActorID     MemberID    `json:"actor_id"`
}

// Payload implements Event interface.
func (e CommunityEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"community_id": e.CommunityID,
		"actor_id":     e.ActorID,
	}
}

// NewCommunityEvent creates a provisioning or deletion event.
func NewCommunityEvent(eventType EventType, community CommunityID, actor MemberID) CommunityEvent {
	return CommunityEvent{
		BaseEvent:   NewBaseEvent(eventType, string(community)),
		CommunityID: community,
		ActorID:     actor,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
