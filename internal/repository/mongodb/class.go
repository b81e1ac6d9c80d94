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

// ClassRepository handles persistence for class listings.
type ClassRepository struct {
	classes *mongo.Collection
}

// NewClassRepository constructs a ClassRepository over the classes collection.
func NewClassRepository(db *mongo.Database) *ClassRepository {
	return &ClassRepository{classes: db.Collection(ClassesCollection)}
}

// Create inserts a new class with a zero enrolled count.
func (r *ClassRepository) Create(ctx context.Context, c *model.ClassListing) (string, error) {
	doc := classDoc{
		Name:            c.Name,
		Image:           c.Image,
		Seats:           c.Seats,
		Price:           c.Price,
		InstructorName:  c.InstructorName,
		InstructorEmail: c.InstructorEmail,
		CreatedAt:       time.Now().UTC(),
	}
	res, err := r.classes.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert class: %w", err)
	}
	c.ID = insertedHex(res)
	c.Enrolled = 0
	c.CreatedAt = doc.CreatedAt
	return c.ID, nil
}

// List returns classes matching the filter.
func (r *ClassRepository) List(ctx context.Context, f model.ClassFilter) ([]model.ClassListing, error) {
	filter := bson.M{}
	if f.InstructorEmail != "" {
		filter["instructorEmail"] = f.InstructorEmail
	}
	opts := options.Find()
	if f.SortByEnrolled {
		opts.SetSort(bson.D{{Key: "enrolled", Value: -1}})
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.classes.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	var docs []classDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode classes: %w", err)
	}

	classes := make([]model.ClassListing, 0, len(docs))
	for _, d := range docs {
		classes = append(classes, d.toModel())
	}
	return classes, nil
}

// GetByID returns a single class or repository.ErrNotFound.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*model.ClassListing, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc classDoc
	if err := r.classes.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	c := doc.toModel()
	return &c, nil
}

// Update sets the whitelisted fields present in u.
func (r *ClassRepository) Update(ctx context.Context, id string, u model.ClassUpdate) (model.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}

	set := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Image != nil {
		set["image"] = *u.Image
	}
	if u.Seats != nil {
		set["seats"] = *u.Seats
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if len(set) == 0 {
		n, err := r.classes.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
		if err != nil {
			return model.UpdateResult{}, fmt.Errorf("check class: %w", err)
		}
		return model.UpdateResult{Acknowledged: true, MatchedCount: n}, nil
	}

	res, err := r.classes.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("update class: %w", err)
	}
	return updateResult(res), nil
}

// Delete removes a class. Bookings that reference it are left in place.
func (r *ClassRepository) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	res, err := r.classes.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete class: %w", err)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
