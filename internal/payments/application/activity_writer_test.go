package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

func testBuilder(detail string) ActivityBuilder {
	return func() *domain.Activity {
		return &domain.Activity{
			ID:        uuid.New(),
			Type:      domain.ActivityTypePayment,
			Detail:    detail,
			Date:      time.Now().UTC(),
			RequestID: "req-1",
			Status:    domain.ActivityPending,
		}
	}
}

func TestWrite_FirstTierSucceeds(t *testing.T) {
	repo := newMemActivityRepo()
	writer := NewActivityWriter(repo, NewNotifications(nil, nil), nil)

	got, err := writer.Write(context.Background(), testBuilder("full"), testBuilder("bare"))
	require.NoError(t, err)
	require.Equal(t, "full", got.Detail)
}

func TestWrite_DegradesToNextTier(t *testing.T) {
	repo := newMemActivityRepo()
	repo.failAdds = 1
	writer := NewActivityWriter(repo, NewNotifications(nil, nil), nil)

	got, err := writer.Write(context.Background(), testBuilder("full"), testBuilder("minimal"), testBuilder("bare"))
	require.NoError(t, err)
	require.Equal(t, "minimal", got.Detail)
}

func TestWrite_AllTiersFail(t *testing.T) {
	repo := newMemActivityRepo()
	repo.failAdds = 3
	writer := NewActivityWriter(repo, NewNotifications(nil, nil), nil)

	_, err := writer.Write(context.Background(), testBuilder("full"), testBuilder("minimal"), testBuilder("bare"))
	require.Error(t, err)
}

func TestWrite_SkipsNilBuilders(t *testing.T) {
	repo := newMemActivityRepo()
	writer := NewActivityWriter(repo, NewNotifications(nil, nil), nil)

	got, err := writer.Write(context.Background(), func() *domain.Activity { return nil }, testBuilder("bare"))
	require.NoError(t, err)
	require.Equal(t, "bare", got.Detail)
}
