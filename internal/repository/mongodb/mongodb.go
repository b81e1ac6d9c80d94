// Package mongodb implements the store interfaces on a MongoDB database.
// Collection handles are opened once by the caller and injected here.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// Collection names.
const (
	ClassesCollection  = "classes"
	UsersCollection    = "users"
	BookingsCollection = "bookings"
)

type classDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Image           string             `bson:"image"`
	Seats           int                `bson:"seats"`
	Price           float64            `bson:"price"`
	InstructorName  string             `bson:"instructorName"`
	InstructorEmail string             `bson:"instructorEmail"`
	Enrolled        int                `bson:"enrolled"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d classDoc) toModel() model.ClassListing {
	return model.ClassListing{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Image:           d.Image,
		Seats:           d.Seats,
		Price:           d.Price,
		InstructorName:  d.InstructorName,
		InstructorEmail: d.InstructorEmail,
		Enrolled:        d.Enrolled,
		CreatedAt:       d.CreatedAt,
	}
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name,omitempty"`
	Photo     string             `bson:"photo,omitempty"`
	Role      string             `bson:"role,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDoc) toModel() model.UserAccount {
	return model.UserAccount{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		Photo:     d.Photo,
		Role:      d.Role,
		CreatedAt: d.CreatedAt,
	}
}

type bookingDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ClassID       string             `bson:"classId,omitempty"`
	UserEmail     string             `bson:"email,omitempty"`
	ClassName     string             `bson:"className,omitempty"`
	Price         float64            `bson:"price,omitempty"`
	PaymentStatus string             `bson:"paymentStatus"`
	TransactionID *string            `bson:"transactionId"`
	CreatedAt     time.Time          `bson:"createdAt,omitempty"`
}

func (d bookingDoc) toModel() model.Booking {
	return model.Booking{
		ID:            d.ID.Hex(),
		ClassID:       d.ClassID,
		UserEmail:     d.UserEmail,
		ClassName:     d.ClassName,
		Price:         d.Price,
		PaymentStatus: d.PaymentStatus,
		TransactionID: d.TransactionID,
		CreatedAt:     d.CreatedAt,
	}
}

// objectID validates an opaque identifier before it reaches a query.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return oid, nil
}

func insertedHex(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}

func updateResult(res *mongo.UpdateResult) model.UpdateResult {
	out := model.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		out.UpsertedID = oid.Hex()
	}
	return out
}

// EnsureIndexes creates the indexes the repositories rely on. Emails are
// unique per account. Bookings are indexed by (class, email) without a
// uniqueness constraint; an older unique version of that index is dropped.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users.email index: %w", err)
	}

	bookingIdx := db.Collection(BookingsCollection).Indexes()
	if _, err = bookingIdx.DropOne(ctx, bookingClassEmailIndex); err != nil && !isMissingIndex(err) {
		return fmt.Errorf("drop %s index: %w", bookingClassEmailIndex, err)
	}
	_, err = bookingIdx.CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "classId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetName(bookingClassEmailIndex),
		},
		{Keys: bson.D{{Key: "paymentStatus", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create bookings indexes: %w", err)
	}

	_, err = db.Collection(ClassesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "instructorEmail", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create classes.instructorEmail index: %w", err)
	}
	return nil
}

const bookingClassEmailIndex = "classId_1_email_1"

// isMissingIndex reports a dropIndex on an index or collection that does
// not exist yet.
func isMissingIndex(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == 26 || ce.Code == 27
	}
	return false
}
