package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movienight/backend/internal/models"
)

var _ Store = (*PostgresStore)(nil)

const pgUniqueViolation = "23505"

// PostgresStore handles registration and attendee persistence in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a registrations store on a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the pool.
func (r *PostgresStore) Close() error {
	r.pool.Close()
	return nil
}

// CreateRegistration inserts a registration and its attendees in one transaction.
func (r *PostgresStore) CreateRegistration(ctx context.Context, serial, email string, attendees []models.Attendee) (*models.Registration, error) {
	reg := &models.Registration{Serial: serial, Email: email}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO registrations (serial, email) VALUES ($1, $2) RETURNING id, created_at`
		if err := tx.QueryRow(ctx, q, serial, email).Scan(&reg.ID, &reg.CreatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrDuplicateSerial
			}
			return fmt.Errorf("insert registration: %w", err)
		}
		for _, a := range attendees {
			a.RegistrationID = reg.ID
			id, err := insertPgAttendee(ctx, tx, reg.ID, a)
			if err != nil {
				return err
			}
			a.ID = id
			reg.Attendees = append(reg.Attendees, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

type pgQueryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertAttendee adds one attendee to an existing registration.
func (r *PostgresStore) InsertAttendee(ctx context.Context, registrationID int64, a models.Attendee) error {
	_, err := insertPgAttendee(ctx, r.pool, registrationID, a)
	return err
}

func insertPgAttendee(ctx context.Context, q pgQueryRower, registrationID int64, a models.Attendee) (int64, error) {
	const stmt = `INSERT INTO attendees (registration_id, first_name, last_name, vip) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	if err := q.QueryRow(ctx, stmt, registrationID, a.FirstName, a.LastName, a.VIP).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert attendee: %w", err)
	}
	return id, nil
}

const pgJoinQuery = `SELECT r.id, r.serial, r.email, r.checked_in, r.checked_in_at, r.created_at,
	a.id, a.first_name, a.last_name, a.vip
	FROM registrations r
	LEFT JOIN attendees a ON a.registration_id = r.id`

// FindBySerial returns a registration and its attendees by serial.
func (r *PostgresStore) FindBySerial(ctx context.Context, serial string) (*models.Registration, error) {
	rows, err := r.pool.Query(ctx, pgJoinQuery+` WHERE r.serial = $1 ORDER BY a.id`, serial)
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	regs, err := scanPgJoined(rows)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, ErrNotFound
	}
	return &regs[0], nil
}

// MarkCheckedIn sets checked_in only if it is still false. Row-level locking
// in the UPDATE serializes concurrent scans of the same ticket.
func (r *PostgresStore) MarkCheckedIn(ctx context.Context, serial string, at time.Time) (time.Time, error) {
	const q = `UPDATE registrations
		SET checked_in = TRUE, checked_in_at = GREATEST($2::timestamptz, created_at)
		WHERE serial = $1 AND checked_in = FALSE
		RETURNING checked_in_at`
	var stamp time.Time
	err := r.pool.QueryRow(ctx, q, serial, at).Scan(&stamp)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM registrations WHERE serial = $1)`, serial).Scan(&exists); err != nil {
			return time.Time{}, fmt.Errorf("check registration: %w", err)
		}
		if !exists {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, ErrAlreadyCheckedIn
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("mark checked in: %w", err)
	}
	return stamp, nil
}

// ListAll returns all registrations with attendees, newest first.
func (r *PostgresStore) ListAll(ctx context.Context) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, pgJoinQuery+` ORDER BY r.created_at DESC, r.id DESC, a.id`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return scanPgJoined(rows)
}

// DeleteBySerial deletes the attendees and then the registration in one transaction.
func (r *PostgresStore) DeleteBySerial(ctx context.Context, serial string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM registrations WHERE serial = $1 FOR UPDATE`, serial).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM attendees WHERE registration_id = $1`, id); err != nil {
			return fmt.Errorf("delete attendees: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		return nil
	})
}

// Count returns the number of registrations.
func (r *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func scanPgJoined(rows pgx.Rows) ([]models.Registration, error) {
	defer rows.Close()
	var joined []joinedRow
	for rows.Next() {
		var (
			jr          joinedRow
			attID       *int64
			first, last *string
			vip         *bool
		)
		if err := rows.Scan(&jr.reg.ID, &jr.reg.Serial, &jr.reg.Email, &jr.reg.CheckedIn, &jr.reg.CheckedInAt, &jr.reg.CreatedAt,
			&attID, &first, &last, &vip); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		if attID != nil {
			a := models.Attendee{ID: *attID, RegistrationID: jr.reg.ID}
			if first != nil {
				a.FirstName = *first
			}
			if last != nil {
				a.LastName = *last
			}
			if vip != nil {
				a.VIP = *vip
			}
			jr.attendee = &a
		}
		joined = append(joined, jr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return groupRows(joined), nil
}
