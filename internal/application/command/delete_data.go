package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE DATA COMMAND
// Two-step destruction of a community's namespace: Request issues a token,
// Confirm or Cancel settles it. An unsettled token expires after the window
// and counts as cancelled.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultConfirmWindow is how long a deletion request stays confirmable.
const DefaultConfirmWindow = 60 * time.Second

// DeletionRequest is a pending, unconfirmed deletion.
type DeletionRequest struct {
	Token       string
	CommunityID shared.CommunityID
	RequestedBy shared.MemberID
	ExpiresAt   time.Time
}

type pendingDeletion struct {
	req     DeletionRequest
	settled atomic.Bool
}

// DeleteDataHandler handles the delete-all-data flow.
type DeleteDataHandler struct {
	store     ledger.Store
	publisher shared.EventPublisher
	logger    *slog.Logger
	window    time.Duration
	now       func() time.Time

	mu        sync.Mutex
	pending   *gocache.Cache
	onExpired func(DeletionRequest)
}

// NewDeleteDataHandler creates a new DeleteDataHandler.
func NewDeleteDataHandler(
	store ledger.Store,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	window time.Duration,
) *DeleteDataHandler {
	if window <= 0 {
		window = DefaultConfirmWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &DeleteDataHandler{
		store:     store,
		publisher: publisher,
		logger:    logger.With("handler", "delete_data"),
		window:    window,
		now:       time.Now,
		pending:   gocache.New(window, window/2),
	}
	h.pending.OnEvicted(h.evicted)
	return h
}

// OnExpired registers a callback for requests that time out unsettled.
func (h *DeleteDataHandler) OnExpired(fn func(DeletionRequest)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onExpired = fn
}

func (h *DeleteDataHandler) evicted(_ string, v interface{}) {
	p, ok := v.(*pendingDeletion)
	if !ok || p.settled.Load() {
		return
	}
	req := p.req

	h.mu.Lock()
	fn := h.onExpired
	h.mu.Unlock()

	h.logger.Info("deletion request expired",
		"guild_id", req.CommunityID,
		"actor_id", req.RequestedBy,
	)
	if fn != nil {
		fn(req)
	}
}

// Request opens a confirmation window for deleting the community's data.
func (h *DeleteDataHandler) Request(_ context.Context, community shared.CommunityID, actor shared.MemberID) (*DeletionRequest, error) {
	if !community.IsValid() {
		return nil, fmt.Errorf("delete_data: %w", shared.ErrInvalidCommunity)
	}

	p := &pendingDeletion{req: DeletionRequest{
		Token:       uuid.NewString(),
		CommunityID: community,
		RequestedBy: actor,
		ExpiresAt:   h.now().Add(h.window),
	}}
	h.pending.Set(p.req.Token, p, h.window)

	req := p.req
	return &req, nil
}

// take removes and returns the request if actor owns it and it is live.
func (h *DeleteDataHandler) take(token string, actor shared.MemberID) (*DeletionRequest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.pending.Get(token)
	if !ok {
		return nil, shared.ErrConfirmationGone
	}
	p := v.(*pendingDeletion)
	if p.req.RequestedBy != actor {
		return nil, shared.ErrConfirmationOwner
	}
	if !h.now().Before(p.req.ExpiresAt) {
		return nil, shared.ErrConfirmationGone
	}

	p.settled.Store(true)
	h.pending.Delete(token)

	req := p.req
	return &req, nil
}

// Confirm tears down the namespace of a live request owned by actor.
func (h *DeleteDataHandler) Confirm(ctx context.Context, token string, actor shared.MemberID) (*DeletionRequest, error) {
	req, err := h.take(token, actor)
	if err != nil {
		return nil, fmt.Errorf("delete_data: %w", err)
	}

	if err := h.store.Teardown(ctx, req.CommunityID); err != nil {
		return nil, fmt.Errorf("delete_data: %w", err)
	}

	h.logger.Warn("community data deleted",
		"guild_id", req.CommunityID,
		"actor_id", actor,
	)
	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewCommunityEvent(shared.EventCommunityDeleted, req.CommunityID, actor))
	}
	return req, nil
}

// Cancel discards a live request owned by actor.
func (h *DeleteDataHandler) Cancel(_ context.Context, token string, actor shared.MemberID) (*DeletionRequest, error) {
	req, err := h.take(token, actor)
	if err != nil {
		return nil, fmt.Errorf("delete_data: %w", err)
	}
	return req, nil
}
