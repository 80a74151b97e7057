package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/internal/shared/infrastructure/database"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satchel-test.db")
	db, err := database.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, MigrateSQLite(context.Background(), db))
	return db
}

func sampleActivity(requestID string) *domain.Activity {
	return &domain.Activity{
		ID:        uuid.New(),
		Type:      domain.ActivityTypeSubscriptionPayment,
		Detail:    "payment in progress",
		Date:      time.Now().UTC().Truncate(time.Millisecond),
		Amount:    1000,
		Currency:  "SATS",
		RequestID: requestID,
		Status:    domain.ActivityPending,
		Invoice:   "lnbc-" + requestID,
	}
}

func TestSQLiteActivityRepo_RoundTrip(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	ctx := context.Background()

	activity := sampleActivity("req-1")
	converted := 12.5
	activity.ConvertedAmount = &converted
	activity.ConvertedCurrency = "EUR"
	subID := uuid.New()
	activity.SubscriptionID = &subID

	require.NoError(t, repo.Add(ctx, activity))

	got, err := repo.FindByID(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, activity.RequestID, got.RequestID)
	require.Equal(t, activity.Invoice, got.Invoice)
	require.NotNil(t, got.ConvertedAmount)
	require.InDelta(t, converted, *got.ConvertedAmount, 1e-9)
	require.NotNil(t, got.SubscriptionID)
	require.Equal(t, subID, *got.SubscriptionID)

	has, err := repo.HasRequestID(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, has)

	has, err = repo.HasRequestID(ctx, "req-other")
	require.NoError(t, err)
	require.False(t, has)
}

func TestSQLiteActivityRepo_FindByIDMissing(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	got, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteActivityRepo_StatusIsMonotone(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	ctx := context.Background()

	activity := sampleActivity("req-mono")
	require.NoError(t, repo.Add(ctx, activity))

	require.NoError(t, repo.UpdateStatus(ctx, activity.ID, domain.ActivityPositive, "payment completed"))

	err := repo.UpdateStatus(ctx, activity.ID, domain.ActivityNegative, "late override")
	require.ErrorIs(t, err, domain.ErrActivityTerminal)

	got, err := repo.FindByID(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityPositive, got.Status)
	require.Equal(t, "payment completed", got.Detail)
}

func TestSQLiteActivityRepo_UpdateStatusUnknown(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	err := repo.UpdateStatus(context.Background(), uuid.New(), domain.ActivityNegative, "x")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestSQLiteActivityRepo_RejectsNonTerminalTarget(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	ctx := context.Background()
	activity := sampleActivity("req-neutral")
	require.NoError(t, repo.Add(ctx, activity))

	err := repo.UpdateStatus(ctx, activity.ID, domain.ActivityNeutral, "x")
	require.Error(t, err)
}

func TestSQLiteActivityRepo_FindPendingWithInvoice(t *testing.T) {
	repo := NewSQLiteActivityRepository(testDB(t))
	ctx := context.Background()

	pending := sampleActivity("req-pending")
	require.NoError(t, repo.Add(ctx, pending))

	noInvoice := sampleActivity("req-noinvoice")
	noInvoice.Invoice = ""
	require.NoError(t, repo.Add(ctx, noInvoice))

	done := sampleActivity("req-done")
	require.NoError(t, repo.Add(ctx, done))
	require.NoError(t, repo.UpdateStatus(ctx, done.ID, domain.ActivityPositive, "done"))

	got, err := repo.FindPendingWithInvoice(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, pending.ID, got[0].ID)
}

func TestSQLiteSubscriptionRepo_RoundTrip(t *testing.T) {
	repo := NewSQLiteSubscriptionRepository(testDB(t))
	ctx := context.Background()

	max := 12
	until := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &domain.Subscription{
		ID:              uuid.New(),
		ServiceKey:      "svc",
		ServiceName:     "Example",
		Amount:          1000,
		Currency:        "SATS",
		Recurrence:      "FREQ=MONTHLY",
		MaxPayments:     &max,
		Until:           &until,
		FirstPaymentDue: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Status:          domain.SubscriptionActive,
	}
	require.NoError(t, repo.Add(ctx, sub))

	got, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, sub.Recurrence, got.Recurrence)
	require.NotNil(t, got.MaxPayments)
	require.Equal(t, 12, *got.MaxPayments)
	require.NotNil(t, got.Until)
	require.True(t, got.Until.Equal(until))
	require.Equal(t, 0, got.PaymentCount)
	require.Nil(t, got.LastPaymentDate)
}

func TestSQLiteSubscriptionRepo_UpdateLastPayment(t *testing.T) {
	repo := NewSQLiteSubscriptionRepository(testDB(t))
	ctx := context.Background()

	sub := &domain.Subscription{
		ID:              uuid.New(),
		ServiceKey:      "svc",
		Amount:          1000,
		Currency:        "SATS",
		Recurrence:      "FREQ=MONTHLY",
		FirstPaymentDue: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Status:          domain.SubscriptionActive,
	}
	require.NoError(t, repo.Add(ctx, sub))

	paidAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next := paidAt.AddDate(0, 1, 0)
	require.NoError(t, repo.UpdateLastPayment(ctx, sub.ID, paidAt, &next))
	require.NoError(t, repo.UpdateLastPayment(ctx, sub.ID, next, nil))

	got, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.PaymentCount)
	require.NotNil(t, got.LastPaymentDate)
	require.True(t, got.LastPaymentDate.Equal(next))
	require.Nil(t, got.NextPaymentDate)
}

func TestSQLiteSubscriptionRepo_UpdateStatus(t *testing.T) {
	repo := NewSQLiteSubscriptionRepository(testDB(t))
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, uuid.New(), domain.SubscriptionCancelled)
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	sub := &domain.Subscription{
		ID:              uuid.New(),
		ServiceKey:      "svc",
		Amount:          1000,
		Currency:        "SATS",
		Recurrence:      "FREQ=MONTHLY",
		FirstPaymentDue: time.Now().UTC(),
		Status:          domain.SubscriptionActive,
	}
	require.NoError(t, repo.Add(ctx, sub))
	require.NoError(t, repo.UpdateStatus(ctx, sub.ID, domain.SubscriptionCancelled))

	got, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SubscriptionCancelled, got.Status)
}

func TestSQLitePaymentStatusRepo_AppendAndList(t *testing.T) {
	repo := NewSQLitePaymentStatusRepository(testDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Append(ctx, domain.PaymentStatusEntry{Invoice: "inv-1", ActionType: domain.PaymentStarted, CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, domain.PaymentStatusEntry{Invoice: "inv-1", ActionType: domain.PaymentCompleted, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, repo.Append(ctx, domain.PaymentStatusEntry{Invoice: "inv-2", ActionType: domain.PaymentStarted, CreatedAt: base}))

	entries, err := repo.ListByInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.PaymentStarted, entries[0].ActionType)
	require.Equal(t, domain.PaymentCompleted, entries[1].ActionType)
}

func TestSQLiteLockRepo_ConditionalInsert(t *testing.T) {
	repo := NewSQLiteLockRepository(testDB(t))
	ctx := context.Background()
	id := uuid.New()

	acquired, err := repo.TryAcquire(ctx, id)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = repo.TryAcquire(ctx, id)
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, repo.Release(ctx, id))

	acquired, err = repo.TryAcquire(ctx, id)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestSQLiteRequestMarkerRepo(t *testing.T) {
	repo := NewSQLiteRequestMarkerRepository(testDB(t))
	ctx := context.Background()

	resolved, err := repo.IsResolved(ctx, "req-1")
	require.NoError(t, err)
	require.False(t, resolved)

	require.NoError(t, repo.MarkResolved(ctx, "req-1", true))
	require.NoError(t, repo.MarkResolved(ctx, "req-1", false))

	resolved, err = repo.IsResolved(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, resolved)
}
