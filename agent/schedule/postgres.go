package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var _ Store = (*PostgresStore)(nil)

// exclusion_violation, raised by the appointments_no_overlap constraint.
const pgExclusionViolation = "23P01"

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	Migrate      bool          `envconfig:"MIGRATE" split_words:"true" default:"true"`
}

// PostgresStore is the real calendar backend. Every mutation runs in a
// transaction holding a per-calendar advisory lock, and the table carries an
// exclusion constraint so overlap is also rejected by the database itself.
type PostgresStore struct {
	db     *bun.DB
	policy Policy
	now    func() time.Time
}

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID          string    `bun:"id,pk"`
	CalendarID  string    `bun:"calendar_id,notnull"`
	PatientName string    `bun:"patient_name,notnull"`
	Contact     string    `bun:"contact,notnull"`
	Channel     string    `bun:"channel,notnull"`
	StartsAt    time.Time `bun:"starts_at,notnull"`
	EndsAt      time.Time `bun:"ends_at,notnull"`
	Status      string    `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r appointmentRow) toAppointment(loc *time.Location) Appointment {
	return Appointment{
		ID:          r.ID,
		CalendarID:  r.CalendarID,
		PatientName: r.PatientName,
		Contact:     r.Contact,
		Channel:     r.Channel,
		Slot:        Slot{Start: r.StartsAt, End: r.EndsAt}.In(loc),
		Status:      Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig, policy Policy) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(db, policy)
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

func NewPostgresStore(db *bun.DB, policy Policy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy, now: time.Now}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id           TEXT PRIMARY KEY,
		calendar_id  TEXT NOT NULL,
		patient_name TEXT NOT NULL DEFAULT '',
		contact      TEXT NOT NULL DEFAULT '',
		channel      TEXT NOT NULL DEFAULT '',
		starts_at    TIMESTAMPTZ NOT NULL,
		ends_at      TIMESTAMPTZ NOT NULL,
		status       TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (starts_at < ends_at)
	)`,
	`DO $$ BEGIN
		ALTER TABLE appointments ADD CONSTRAINT appointments_no_overlap
			EXCLUDE USING gist (calendar_id WITH =, tstzrange(starts_at, ends_at, '[)') WITH &&)
			WHERE (status = 'confirmed');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`CREATE INDEX IF NOT EXISTS appointments_calendar_start_idx ON appointments (calendar_id, starts_at)`,
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresStore) CheckAvailability(ctx context.Context, slot Slot) (bool, error) {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return false, err
	}
	conflict, err := s.overlaps(ctx, s.db, slot, "")
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

func (s *PostgresStore) Book(ctx context.Context, patient PatientInfo, slot Slot) (string, error) {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return "", err
	}
	patient = patient.normalized()

	now := s.now().UTC()
	row := &appointmentRow{
		ID:          uuid.NewString(),
		CalendarID:  s.policy.CalendarID,
		PatientName: patient.Name,
		Contact:     patient.Contact,
		Channel:     patient.Channel,
		StartsAt:    slot.Start.UTC(),
		EndsAt:      slot.End.UTC(),
		Status:      string(StatusConfirmed),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.lockCalendar(ctx, tx); err != nil {
			return err
		}
		conflict, err := s.overlaps(ctx, tx, slot, "")
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}
		_, err = tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return "", translatePgError(err)
	}
	return row.ID, nil
}

func (s *PostgresStore) Modify(ctx context.Context, id string, slot Slot) error {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.lockCalendar(ctx, tx); err != nil {
			return err
		}
		row, err := s.selectForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Status == string(StatusCancelled) {
			return fmt.Errorf("%w: id=%s", ErrAppointmentCancelled, id)
		}
		if (Slot{Start: row.StartsAt, End: row.EndsAt}).Equal(slot) {
			return nil
		}
		conflict, err := s.overlaps(ctx, tx, slot, id)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		row.StartsAt = slot.Start.UTC()
		row.EndsAt = slot.End.UTC()
		row.UpdatedAt = s.now().UTC()
		_, err = tx.NewUpdate().Model(&row).
			Column("starts_at", "ends_at", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	return translatePgError(err)
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.lockCalendar(ctx, tx); err != nil {
			return err
		}
		row, err := s.selectForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Status == string(StatusCancelled) {
			return nil
		}
		row.Status = string(StatusCancelled)
		row.UpdatedAt = s.now().UTC()
		_, err = tx.NewUpdate().Model(&row).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	return translatePgError(err)
}

func (s *PostgresStore) GetDetails(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)

	var row appointmentRow
	err := s.db.NewSelect().Model(&row).
		Where("id = ?", id).
		Where("calendar_id = ?", s.policy.CalendarID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return Appointment{}, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return row.toAppointment(s.policy.location()), nil
}

func (s *PostgresStore) ListConfirmed(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	var rows []appointmentRow
	q := s.db.NewSelect().Model(&rows).
		Where("calendar_id = ?", s.policy.CalendarID).
		Where("status = ?", string(StatusConfirmed)).
		OrderExpr("starts_at ASC, id ASC")
	if !from.IsZero() {
		q = q.Where("ends_at > ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("starts_at < ?", to.UTC())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	out := make([]Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAppointment(s.policy.location()))
	}
	return out, nil
}

// lockCalendar takes the calendar's transaction-scoped advisory lock.
func (s *PostgresStore) lockCalendar(ctx context.Context, tx bun.Tx) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", s.policy.CalendarID); err != nil {
		return fmt.Errorf("lock calendar %s: %w", s.policy.CalendarID, err)
	}
	return nil
}

func (s *PostgresStore) selectForUpdate(ctx context.Context, tx bun.Tx, id string) (appointmentRow, error) {
	var row appointmentRow
	err := tx.NewSelect().Model(&row).
		Where("id = ?", id).
		Where("calendar_id = ?", s.policy.CalendarID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appointmentRow{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return appointmentRow{}, err
	}
	return row, nil
}

func (s *PostgresStore) overlaps(ctx context.Context, db bun.IDB, slot Slot, exclude string) (bool, error) {
	q := db.NewSelect().Model((*appointmentRow)(nil)).
		Where("calendar_id = ?", s.policy.CalendarID).
		Where("status = ?", string(StatusConfirmed)).
		Where("starts_at < ?", slot.End.UTC()).
		Where("ends_at > ?", slot.Start.UTC())
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

// translatePgError maps backend failures onto the store's error taxonomy.
func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if isExclusionViolation(err) {
		return fmt.Errorf("%w: rejected by database", ErrSlotConflict)
	}
	return err
}

func isExclusionViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgExclusionViolation
}
