package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.Nil(t, Fields(context.Background()))

	ctx := WithActor(context.Background(), Actor{UserID: "u-1", Role: "admin", IPAddress: "192.0.2.1"})
	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u-1", actor.UserID)

	fields := Fields(ctx)
	require.Len(t, fields, 3)
	require.Equal(t, "actor_id", fields[0].Key)
	require.Equal(t, "actor_ip", fields[2].Key)
}

func TestFieldsSkipsAnonymousActor(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{IPAddress: "192.0.2.1"})
	require.Nil(t, Fields(ctx))
}
