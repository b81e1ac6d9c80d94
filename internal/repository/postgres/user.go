package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

const userColumns = `id, email, name, photo, role, created_at`

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*model.UserAccount, error) {
	var (
		u  model.UserAccount
		id uuid.UUID
	)
	if err := row.Scan(&id, &u.Email, &u.Name, &u.Photo, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ID = id.String()
	return &u, nil
}

// FindByEmail returns the account registered under email or repository.ErrNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Create inserts a new account. A taken email yields repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *model.UserAccount) (string, error) {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.Photo, u.Role, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrDuplicate
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}

// List returns accounts matching the filter, newest first.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]model.UserAccount, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if f.Role != "" {
		args = append(args, f.Role)
		q += fmt.Sprintf(` WHERE role = $%d`, len(args))
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.UserAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetRole changes an account's role.
func (r *UserRepository) SetRole(ctx context.Context, id, role string) (model.UpdateResult, error) {
	uid, err := parseID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, uid, role)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("set role: %w", err)
	}
	n := tag.RowsAffected()
	return model.UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}, nil
}

// Delete removes an account.
func (r *UserRepository) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	uid, err := parseID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, uid)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete user: %w", err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: tag.RowsAffected()}, nil
}
