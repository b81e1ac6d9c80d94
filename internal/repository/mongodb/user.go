package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository constructs a UserRepository over the users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: db.Collection(UsersCollection)}
}

// FindByEmail returns the account registered under email or repository.ErrNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u := doc.toModel()
	return &u, nil
}

// Create inserts a new account. A taken email yields repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *model.UserAccount) (string, error) {
	doc := userDoc{
		Email:     u.Email,
		Name:      u.Name,
		Photo:     u.Photo,
		Role:      u.Role,
		CreatedAt: time.Now().UTC(),
	}
	res, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", repository.ErrDuplicate
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	u.ID = insertedHex(res)
	u.CreatedAt = doc.CreatedAt
	return u.ID, nil
}

// List returns accounts matching the filter.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]model.UserAccount, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	opts := options.Find()
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]model.UserAccount, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

// SetRole changes an account's role.
func (r *UserRepository) SetRole(ctx context.Context, id, role string) (model.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("set role: %w", err)
	}
	return updateResult(res), nil
}

// Delete removes an account.
func (r *UserRepository) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	res, err := r.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete user: %w", err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
