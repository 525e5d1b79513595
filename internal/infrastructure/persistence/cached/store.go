// Package cached decorates a ledger.Store with a short-lived in-memory cache
// of community settings, which every message event reads.
package cached

import (
	"context"
	"maps"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Store caches Settings reads and invalidates them on every write that can
// change them. All other calls go straight to the wrapped store.
type Store struct {
	ledger.Store
	settings *gocache.Cache
}

var _ ledger.Store = (*Store)(nil)

// New wraps next. A non-positive ttl disables caching.
func New(next ledger.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	return &Store{
		Store:    next,
		settings: gocache.New(ttl, 2*ttl+time.Minute),
	}
}

// Settings returns a copy of the cached settings, loading them on a miss.
// NotProvisioned is not cached so that /setup takes effect immediately.
func (s *Store) Settings(ctx context.Context, community shared.CommunityID) (ledger.Settings, error) {
	if v, ok := s.settings.Get(string(community)); ok {
		return maps.Clone(v.(ledger.Settings)), nil
	}

	settings, err := s.Store.Settings(ctx, community)
	if err != nil {
		return nil, err
	}

	s.settings.SetDefault(string(community), maps.Clone(settings))
	return settings, nil
}

// SetSetting writes through and invalidates.
func (s *Store) SetSetting(ctx context.Context, community shared.CommunityID, key ledger.SettingKey, value string) error {
	defer s.Invalidate(community)
	return s.Store.SetSetting(ctx, community, key, value)
}

// SetSettings writes through and invalidates.
func (s *Store) SetSettings(ctx context.Context, community shared.CommunityID, values map[ledger.SettingKey]string) error {
	defer s.Invalidate(community)
	return s.Store.SetSettings(ctx, community, values)
}

// Provision writes through and invalidates.
func (s *Store) Provision(ctx context.Context, community shared.CommunityID) error {
	defer s.Invalidate(community)
	return s.Store.Provision(ctx, community)
}

// Teardown writes through and invalidates.
func (s *Store) Teardown(ctx context.Context, community shared.CommunityID) error {
	defer s.Invalidate(community)
	return s.Store.Teardown(ctx, community)
}

// Invalidate drops the cached settings of one community.
func (s *Store) Invalidate(community shared.CommunityID) {
	s.settings.Delete(string(community))
}
