package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

type recorded struct {
	mu        sync.Mutex
	published []shared.EventType
	results   []bool
}

func (r *recorded) EventPublished(t shared.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, t)
}

func (r *recorded) HandlerExecuted(_ shared.EventType, _ time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ok)
}

func newBus(async bool, rec Recorder) *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      async,
		WorkerPoolSize: 2,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder:       rec,
	})
}

func levelUp() shared.LevelUpEvent {
	return shared.NewLevelUpEvent("1", "2", "3", 0, 1, 120)
}

func TestEventBus_SyncDeliversByType(t *testing.T) {
	bus := newBus(false, nil)

	var got []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(levelUp()))
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("1", "2", "3", 20, 20)))

	assert.Equal(t, []shared.EventType{
		shared.EventLevelUp,
		"all:" + shared.EventLevelUp,
		"all:" + shared.EventXPAwarded,
	}, got)
}

func TestEventBus_SyncJoinsErrorsAndRecoversPanics(t *testing.T) {
	rec := &recorded{}
	bus := newBus(false, rec)
	boom := errors.New("boom")

	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return boom }))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { panic("bad handler") }))

	err := bus.Publish(levelUp())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrHandlerPanic)

	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, rec.published)
	assert.Equal(t, []bool{false, false}, rec.results)
}

func TestEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := newBus(true, nil)

	var (
		mu   sync.Mutex
		done int
	)
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		done++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(levelUp()))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	assert.Equal(t, 5, done)
	mu.Unlock()

	assert.ErrorIs(t, bus.Publish(levelUp()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestEventBus_RejectsNil(t *testing.T) {
	bus := newBus(false, nil)
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
	assert.Error(t, bus.Publish(nil))
}
