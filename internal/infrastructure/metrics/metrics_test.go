package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/internal/infrastructure/messaging"
)

var _ messaging.Recorder = (*Metrics)(nil)

func TestMetrics_AwardOutcome(t *testing.T) {
	m := New(nil)

	m.AwardOutcome(command.OutcomeAwarded, 20)
	m.AwardOutcome(command.OutcomeAwarded, 15)
	m.AwardOutcome(command.OutcomeCooldown, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.awards.WithLabelValues("awarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.awards.WithLabelValues("cooldown")))
	assert.Equal(t, 35.0, testutil.ToFloat64(m.xpAwarded))
}

func TestMetrics_HandlerExecuted(t *testing.T) {
	m := New(nil)

	m.EventPublished(shared.EventLevelUp)
	m.HandlerExecuted(shared.EventLevelUp, 10*time.Millisecond, true)
	m.HandlerExecuted(shared.EventLevelUp, 10*time.Millisecond, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(string(shared.EventLevelUp))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerRuns.WithLabelValues(string(shared.EventLevelUp), "error")))
}

func TestMetrics_LedgerUpGauge(t *testing.T) {
	healthy := New(func(context.Context) error { return nil })
	down := New(func(context.Context) error { return errors.New("down") })

	assert.Equal(t, 1.0, testutil.ToFloat64(healthy.ledgerUp))
	assert.Equal(t, 0.0, testutil.ToFloat64(down.ledgerUp))

	_, err := healthy.Registry.Gather()
	require.NoError(t, err)
}
