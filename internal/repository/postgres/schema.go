// Package postgres implements the store interfaces on PostgreSQL using pgx
// directly (no ORM). Documents map onto one table per collection.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	image            TEXT NOT NULL DEFAULT '',
	seats            INTEGER NOT NULL DEFAULT 0,
	price            DOUBLE PRECISION NOT NULL DEFAULT 0,
	instructor_name  TEXT NOT NULL DEFAULT '',
	instructor_email TEXT NOT NULL DEFAULT '',
	enrolled         INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS classes_instructor_email_idx ON classes (instructor_email);

CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	photo      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id             UUID PRIMARY KEY,
	class_id       UUID,
	user_email     TEXT NOT NULL DEFAULT '',
	class_name     TEXT NOT NULL DEFAULT '',
	price          DOUBLE PRECISION NOT NULL DEFAULT 0,
	payment_status TEXT NOT NULL DEFAULT 'unpaid',
	transaction_id TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
DROP INDEX IF EXISTS bookings_class_user_idx;
CREATE INDEX IF NOT EXISTS bookings_class_email_idx ON bookings (class_id, user_email);
CREATE INDEX IF NOT EXISTS bookings_user_email_idx ON bookings (user_email);
`

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// parseID validates an opaque identifier before it reaches a query.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return u, nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
