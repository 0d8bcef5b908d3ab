// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamplay/internal/metrics"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func receive(t *testing.T, sub Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "session/1")
	require.NoError(t, err)
	defer a.Close()
	c, err := b.Subscribe(ctx, "session/1")
	require.NoError(t, err)
	defer c.Close()
	other, err := b.Subscribe(ctx, "session/2")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, b.Publish(ctx, "session/1", Message(`{"type":"state"}`)))

	require.Equal(t, Message(`{"type":"state"}`), receive(t, a))
	require.Equal(t, Message(`{"type":"state"}`), receive(t, c))
	require.Len(t, other.C(), 0)
}

func TestMemoryBus_CloseUnsubscribes(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers("topic"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, b.Subscribers("topic"))

	_, ok := <-sub.C()
	require.False(t, ok)
	require.NoError(t, b.Publish(context.Background(), "topic", Message("x")))
}

func TestMemoryBusPublishContextTimeoutIncrementsDropMetrics(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "session/full")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "session/full", Message("msg")))
	}

	before := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("session", "timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "session/full", Message("blocked"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	after := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("session", "timeout"))
	require.Greater(t, after, before)
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//nolint:staticcheck // nil context is the case under test
	err := b.Publish(nil, "topic", Message("msg"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}
