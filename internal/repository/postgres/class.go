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

const classColumns = `id, name, image, seats, price, instructor_name, instructor_email, enrolled, created_at`

// ClassRepository handles persistence for class listings.
type ClassRepository struct {
	db *pgxpool.Pool
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{db: db}
}

func scanClass(row pgx.Row) (*model.ClassListing, error) {
	var (
		c  model.ClassListing
		id uuid.UUID
	)
	err := row.Scan(&id, &c.Name, &c.Image, &c.Seats, &c.Price,
		&c.InstructorName, &c.InstructorEmail, &c.Enrolled, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.String()
	return &c, nil
}

// Create inserts a new class with a generated UUID and a zero enrolled count.
func (r *ClassRepository) Create(ctx context.Context, c *model.ClassListing) (string, error) {
	c.ID = uuid.New().String()
	c.Enrolled = 0
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO classes (`+classColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Image, c.Seats, c.Price, c.InstructorName, c.InstructorEmail, c.Enrolled, c.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert class: %w", err)
	}
	return c.ID, nil
}

// List returns classes matching the filter. Without a sort they come back
// in creation order.
func (r *ClassRepository) List(ctx context.Context, f model.ClassFilter) ([]model.ClassListing, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + classColumns + ` FROM classes`)
	if f.InstructorEmail != "" {
		args = append(args, f.InstructorEmail)
		fmt.Fprintf(&sb, ` WHERE instructor_email = $%d`, len(args))
	}
	if f.SortByEnrolled {
		sb.WriteString(` ORDER BY enrolled DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at ASC`)
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []model.ClassListing
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

// GetByID returns a single class or repository.ErrNotFound.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*model.ClassListing, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	c, err := scanClass(r.db.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// Update sets the whitelisted fields present in u.
func (r *ClassRepository) Update(ctx context.Context, id string, u model.ClassUpdate) (model.UpdateResult, error) {
	uid, err := parseID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}

	var (
		sets []string
		args = []any{uid}
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Image != nil {
		add("image", *u.Image)
	}
	if u.Seats != nil {
		add("seats", *u.Seats)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if len(sets) == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, uid).Scan(&exists); err != nil {
			return model.UpdateResult{}, fmt.Errorf("check class: %w", err)
		}
		res := model.UpdateResult{Acknowledged: true}
		if exists {
			res.MatchedCount = 1
		}
		return res, nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE classes SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("update class: %w", err)
	}
	n := tag.RowsAffected()
	return model.UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}, nil
}

// Delete removes a class. Bookings that reference it are left in place.
func (r *ClassRepository) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	uid, err := parseID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, uid)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete class: %w", err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: tag.RowsAffected()}, nil
}
