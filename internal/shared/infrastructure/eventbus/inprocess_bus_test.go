package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInProcessBusDeliversToMatchingHandlers(t *testing.T) {
	bus := NewInProcessBus(nil)

	var got []string
	bus.Subscribe("activity.added", func(_ context.Context, key string, payload []byte) {
		got = append(got, key+":"+string(payload))
	})
	bus.Subscribe("activity.updated", func(_ context.Context, key string, _ []byte) {
		t.Fatalf("unexpected delivery to %s handler", key)
	})

	err := bus.Publish(context.Background(), "activity.added", []byte(`{"id":1}`))
	require.NoError(t, err)
	require.Equal(t, []string{`activity.added:{"id":1}`}, got)
}

func TestInProcessBusWildcardSubscription(t *testing.T) {
	bus := NewInProcessBus(nil)

	var keys []string
	bus.Subscribe("", func(_ context.Context, key string, _ []byte) {
		keys = append(keys, key)
	})

	require.NoError(t, bus.Publish(context.Background(), "activity.added", nil))
	require.NoError(t, bus.Publish(context.Background(), "subscription.status_changed", nil))
	require.Equal(t, []string{"activity.added", "subscription.status_changed"}, keys)
}

func TestInProcessBusNoHandlers(t *testing.T) {
	bus := NewInProcessBus(nil)
	require.NoError(t, bus.Publish(context.Background(), "activity.added", nil))
}
