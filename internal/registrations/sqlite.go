package registrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/movienight/backend/internal/models"
)

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// sqliteTime is the layout the store writes. It is fixed width, and
// julianday parses it, including the nanosecond fraction and the Z suffix.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// legacy rows were stamped with datetime('now')
var sqliteTimeLayouts = []string{sqliteTime, time.RFC3339Nano, "2006-01-02 15:04:05"}

// SQLiteStore implements Store on a SQLite database opened with
// database.NewSQLite and migrated with database.MigrateSQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateRegistration inserts the registration and its attendees in one transaction.
func (s *SQLiteStore) CreateRegistration(ctx context.Context, serial, email string, attendees []models.Attendee) (*models.Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO registrations (serial, email, checked_in, created_at) VALUES (?, ?, 0, ?)",
		serial, email, createdAt.Format(sqliteTime),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicateSerial
		}
		return nil, fmt.Errorf("failed to insert registration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	reg := &models.Registration{ID: id, Serial: serial, Email: email, CreatedAt: createdAt}
	for _, a := range attendees {
		a.RegistrationID = id
		if a.ID, err = insertSQLiteAttendee(ctx, tx, id, a); err != nil {
			return nil, err
		}
		reg.Attendees = append(reg.Attendees, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return reg, nil
}

// InsertAttendee adds one attendee to an existing registration.
func (s *SQLiteStore) InsertAttendee(ctx context.Context, registrationID int64, a models.Attendee) error {
	_, err := insertSQLiteAttendee(ctx, s.db, registrationID, a)
	return err
}

func insertSQLiteAttendee(ctx context.Context, ex sqlExecer, registrationID int64, a models.Attendee) (int64, error) {
	res, err := ex.ExecContext(ctx,
		"INSERT INTO attendees (registration_id, first_name, last_name, vip) VALUES (?, ?, ?, ?)",
		registrationID, a.FirstName, a.LastName, a.VIP,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attendee: %w", err)
	}
	return res.LastInsertId()
}

// FindBySerial retrieves a registration and its attendees.
func (s *SQLiteStore) FindBySerial(ctx context.Context, serial string) (*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, sqliteJoinQuery+" WHERE r.serial = ? ORDER BY a.id", serial)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	regs, err := scanSQLiteJoined(rows)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, ErrNotFound
	}
	return &regs[0], nil
}

// MarkCheckedIn performs the conditional update. The WHERE clause on
// checked_in makes concurrent attempts race inside SQLite, not in Go.
// Timestamps are compared with julianday so mixed text layouts order by time.
func (s *SQLiteStore) MarkCheckedIn(ctx context.Context, serial string, at time.Time) (time.Time, error) {
	stampAt := at.UTC().Format(sqliteTime)
	var stamp string
	err := s.db.QueryRowContext(ctx,
		`UPDATE registrations
		 SET checked_in = 1,
		     checked_in_at = CASE WHEN julianday(?) < julianday(created_at) THEN created_at ELSE ? END
		 WHERE serial = ? AND checked_in = 0
		 RETURNING checked_in_at`,
		stampAt, stampAt, serial,
	).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM registrations WHERE serial = ?)", serial,
		).Scan(&exists); err != nil {
			return time.Time{}, fmt.Errorf("failed to check registration: %w", err)
		}
		if !exists {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, ErrAlreadyCheckedIn
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to mark checked in: %w", err)
	}
	return parseSQLiteTime(stamp)
}

// ListAll returns every registration with attendees, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, sqliteJoinQuery+" ORDER BY julianday(r.created_at) DESC, r.id DESC, a.id")
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return scanSQLiteJoined(rows)
}

// DeleteBySerial deletes attendees first, then the registration.
func (s *SQLiteStore) DeleteBySerial(ctx context.Context, serial string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM registrations WHERE serial = ?", serial).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find registration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendees WHERE registration_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete attendees: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM registrations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of registrations.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registrations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}

const sqliteJoinQuery = `SELECT r.id, r.serial, r.email, COALESCE(r.checked_in, 0), r.checked_in_at, r.created_at,
	a.id, a.first_name, a.last_name, a.vip
	FROM registrations r
	LEFT JOIN attendees a ON a.registration_id = r.id`

func scanSQLiteJoined(rows *sql.Rows) ([]models.Registration, error) {
	defer rows.Close()

	var joined []joinedRow
	for rows.Next() {
		var (
			jr          joinedRow
			checkedInAt sql.NullString
			createdAt   sql.NullString
			attID       sql.NullInt64
			first, last sql.NullString
			vip         sql.NullBool
		)
		if err := rows.Scan(&jr.reg.ID, &jr.reg.Serial, &jr.reg.Email, &jr.reg.CheckedIn, &checkedInAt, &createdAt,
			&attID, &first, &last, &vip); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		if createdAt.Valid {
			t, err := parseSQLiteTime(createdAt.String)
			if err != nil {
				return nil, err
			}
			jr.reg.CreatedAt = t
		}
		if checkedInAt.Valid {
			t, err := parseSQLiteTime(checkedInAt.String)
			if err != nil {
				return nil, err
			}
			jr.reg.CheckedInAt = &t
		}
		if attID.Valid {
			jr.attendee = &models.Attendee{
				ID:             attID.Int64,
				RegistrationID: jr.reg.ID,
				FirstName:      first.String,
				LastName:       last.String,
				VIP:            vip.Bool,
			}
		}
		joined = append(joined, jr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return groupRows(joined), nil
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}
