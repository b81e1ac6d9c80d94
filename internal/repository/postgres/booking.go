package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

const bookingColumns = `id, class_id, user_email, class_name, price, payment_status, transaction_id, created_at`

// BookingRepository handles persistence for bookings and the enrollment
// counter of the class each booking points at.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b       model.Booking
		id      uuid.UUID
		classID *uuid.UUID
	)
	err := row.Scan(&id, &classID, &b.UserEmail, &b.ClassName, &b.Price,
		&b.PaymentStatus, &b.TransactionID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ID = id.String()
	if classID != nil {
		b.ClassID = classID.String()
	}
	return &b, nil
}

// Reserve takes a seat in the class and records the booking in one
// transaction.
//
// The class row is locked with SELECT ... FOR UPDATE so concurrent
// reservations against the same class queue behind each other; each one
// sees the enrolled count left by the previous commit and the capacity
// check cannot be raced past.
func (r *BookingRepository) Reserve(ctx context.Context, b *model.Booking) (id string, err error) {
	classID, err := parseID(b.ClassID)
	if err != nil {
		return "", err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		seats, enrolled int
		name            string
		price           float64
	)
	err = tx.QueryRow(ctx,
		`SELECT seats, enrolled, name, price
		 FROM classes
		 WHERE id = $1
		 FOR UPDATE`,
		classID,
	).Scan(&seats, &enrolled, &name, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = repository.ErrNotFound
			return "", err
		}
		return "", fmt.Errorf("lock class row: %w", err)
	}

	if enrolled >= seats {
		err = repository.ErrClassFull
		return "", err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE classes SET enrolled = enrolled + 1 WHERE id = $1`, classID,
	); err != nil {
		return "", fmt.Errorf("increment enrolled: %w", err)
	}

	b.ID = uuid.New().String()
	b.PaymentStatus = model.PaymentUnpaid
	b.TransactionID = nil
	b.CreatedAt = time.Now().UTC()
	if b.ClassName == "" {
		b.ClassName = name
	}
	if b.Price == 0 {
		b.Price = price
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, classID, b.UserEmail, b.ClassName, b.Price, b.PaymentStatus, b.TransactionID, b.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return b.ID, nil
}

// List returns bookings matching the filter, oldest first.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.PaidOnly {
		args = append(args, model.PaymentPaid)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if f.UserEmail != "" {
		args = append(args, f.UserEmail)
		where = append(where, fmt.Sprintf("user_email = $%d", len(args)))
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// GetByID returns a single booking or repository.ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// Exists reports whether email holds a booking for the class.
func (r *BookingRepository) Exists(ctx context.Context, email, classID string) (bool, error) {
	uid, err := parseID(classID)
	if err != nil {
		return false, err
	}
	var ok bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE class_id = $1 AND user_email = $2)`,
		uid, email,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check booking: %w", err)
	}
	return ok, nil
}

// MarkPaid records the transaction and flips the booking to paid. Like the
// document-store upsert it replaces, a missing id creates a bare row.
func (r *BookingRepository) MarkPaid(ctx context.Context, id, transactionID string) (model.UpdateResult, error) {
	uid, err := parseID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}
	var inserted bool
	err = r.db.QueryRow(ctx,
		`INSERT INTO bookings (id, payment_status, transaction_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET payment_status = EXCLUDED.payment_status, transaction_id = EXCLUDED.transaction_id
		 RETURNING (xmax = 0)`,
		uid, model.PaymentPaid, transactionID, time.Now().UTC(),
	).Scan(&inserted)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("mark booking paid: %w", err)
	}
	if inserted {
		return model.UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: uid.String()}, nil
	}
	return model.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

// Delete removes a booking and gives its seat back to the class.
func (r *BookingRepository) Delete(ctx context.Context, id string) (res model.DeleteResult, err error) {
	uid, err := parseID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var classID *uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM bookings WHERE id = $1 RETURNING class_id`, uid).Scan(&classID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			_ = tx.Rollback(ctx)
			return model.DeleteResult{Acknowledged: true}, nil
		}
		return model.DeleteResult{}, fmt.Errorf("delete booking: %w", err)
	}

	if classID != nil {
		if _, err = tx.Exec(ctx,
			`UPDATE classes SET enrolled = enrolled - 1 WHERE id = $1 AND enrolled > 0`, *classID,
		); err != nil {
			return model.DeleteResult{}, fmt.Errorf("release seat: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return model.DeleteResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}
