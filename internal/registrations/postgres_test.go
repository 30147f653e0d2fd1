package registrations

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movienight/backend/internal/models"
	"github.com/movienight/backend/pkg/database"
)

// newPgTestStore connects to TEST_DATABASE_URL, migrates, and empties both
// tables. Tests using it must not run in parallel.
func newPgTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE attendees, registrations RESTART IDENTITY")
	require.NoError(t, err)
	store := NewPostgresStore(pool)
	t.Cleanup(func() { store.Close() })
	return store
}

func setPgCreatedAt(t *testing.T, s *PostgresStore, serial string, at time.Time) {
	t.Helper()
	_, err := s.pool.Exec(context.Background(), "UPDATE registrations SET created_at = $1 WHERE serial = $2", at, serial)
	require.NoError(t, err)
}

func pgAttendeeCount(t *testing.T, s *PostgresStore) int {
	t.Helper()
	var n int
	require.NoError(t, s.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM attendees").Scan(&n))
	return n
}

func TestPostgresCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	reg, err := s.CreateRegistration(ctx, "MN-2025-00000001", "jane@example.com", janeAndBob)
	require.NoError(t, err)
	assert.NotZero(t, reg.ID)
	assert.False(t, reg.CreatedAt.IsZero())
	require.Len(t, reg.Attendees, 2)

	got, err := s.FindBySerial(ctx, "MN-2025-00000001")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.False(t, got.CheckedIn)
	assert.Nil(t, got.CheckedInAt)
	assert.Equal(t, []string{"Jane Doe", "Bob Roe"}, got.Names())
	assert.True(t, got.HasVIP())
	assert.False(t, got.Attendees[1].VIP)

	_, err = s.FindBySerial(ctx, "MN-2025-FFFFFFFF")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRegistrationWithoutAttendees(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	// the LEFT JOIN yields NULL attendee columns
	_, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", nil)
	require.NoError(t, err)

	got, err := s.FindBySerial(ctx, "MN-2025-00000001")
	require.NoError(t, err)
	assert.Empty(t, got.Attendees)

	regs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Empty(t, regs[0].Attendees)
}

func TestPostgresDuplicateSerial(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	_, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob)
	require.NoError(t, err)

	_, err = s.CreateRegistration(ctx, "MN-2025-00000001", "b@example.com", janeAndBob)
	assert.ErrorIs(t, err, ErrDuplicateSerial)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, pgAttendeeCount(t, s))
}

func TestPostgresInsertAttendee(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	reg, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob[:1])
	require.NoError(t, err)
	require.NoError(t, s.InsertAttendee(ctx, reg.ID, models.Attendee{FirstName: "Late", LastName: "Comer", VIP: true}))

	got, err := s.FindBySerial(ctx, reg.Serial)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe", "Late Comer"}, got.Names())
	assert.True(t, got.Attendees[1].VIP)
}

func TestPostgresMarkCheckedIn(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	reg, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob)
	require.NoError(t, err)

	first := reg.CreatedAt.Add(time.Hour)
	stamp, err := s.MarkCheckedIn(ctx, reg.Serial, first)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(first))

	_, err = s.MarkCheckedIn(ctx, reg.Serial, first.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	got, err := s.FindBySerial(ctx, reg.Serial)
	require.NoError(t, err)
	assert.True(t, got.CheckedIn)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, got.CheckedInAt.Equal(first), "second attempt must not move the timestamp")

	_, err = s.MarkCheckedIn(ctx, "MN-0000-DEADBEEF", first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresMarkCheckedInClampsToCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)
	created := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	reg, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob)
	require.NoError(t, err)
	setPgCreatedAt(t, s, reg.Serial, created)

	stamp, err := s.MarkCheckedIn(ctx, reg.Serial, created.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, stamp.Equal(created), "got %s", stamp)
}

func TestPostgresMarkCheckedInConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	reg, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob)
	require.NoError(t, err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		already int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MarkCheckedIn(ctx, reg.Serial, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				granted++
			case ErrAlreadyCheckedIn:
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, callers-1, already)
}

func TestPostgresListAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)
	base := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	for i, serial := range []string{"MN-2025-00000001", "MN-2025-00000002", "MN-2025-00000003"} {
		_, err := s.CreateRegistration(ctx, serial, "a@example.com", janeAndBob)
		require.NoError(t, err)
		setPgCreatedAt(t, s, serial, base.Add(time.Duration(i)*time.Minute))
	}

	regs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, "MN-2025-00000003", regs[0].Serial)
	assert.Equal(t, "MN-2025-00000002", regs[1].Serial)
	assert.Equal(t, "MN-2025-00000001", regs[2].Serial)
	for _, r := range regs {
		assert.Len(t, r.Attendees, 2)
	}
}

func TestPostgresDeleteBySerial(t *testing.T) {
	ctx := context.Background()
	s := newPgTestStore(t)

	_, err := s.CreateRegistration(ctx, "MN-2025-00000001", "a@example.com", janeAndBob)
	require.NoError(t, err)
	_, err = s.CreateRegistration(ctx, "MN-2025-00000002", "b@example.com", janeAndBob[:1])
	require.NoError(t, err)

	require.NoError(t, s.DeleteBySerial(ctx, "MN-2025-00000001"))
	assert.ErrorIs(t, s.DeleteBySerial(ctx, "MN-2025-00000001"), ErrNotFound)

	regs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "MN-2025-00000002", regs[0].Serial)
	assert.Equal(t, 1, pgAttendeeCount(t, s))
}
