package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

const compensateTimeout = 5 * time.Second

// BookingRepository handles persistence for bookings and the enrollment
// counter on the classes collection.
type BookingRepository struct {
	bookings *mongo.Collection
	classes  *mongo.Collection
	log      *slog.Logger
}

// NewBookingRepository constructs a BookingRepository over the bookings and
// classes collections.
func NewBookingRepository(db *mongo.Database, log *slog.Logger) *BookingRepository {
	return &BookingRepository{
		bookings: db.Collection(BookingsCollection),
		classes:  db.Collection(ClassesCollection),
		log:      log,
	}
}

// Reserve takes a seat in the class and records the booking.
//
// The seat is taken first with a single conditional update that only
// matches while enrolled < seats, so concurrent reservations cannot push
// the counter past capacity. If the booking insert then fails the seat is
// handed back.
func (r *BookingRepository) Reserve(ctx context.Context, b *model.Booking) (string, error) {
	classID, err := objectID(b.ClassID)
	if err != nil {
		return "", err
	}

	var cls classDoc
	err = r.classes.FindOneAndUpdate(ctx,
		bson.M{
			"_id":   classID,
			"$expr": bson.M{"$lt": bson.A{"$enrolled", "$seats"}},
		},
		bson.M{"$inc": bson.M{"enrolled": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&cls)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("take seat: %w", err)
		}
		n, cerr := r.classes.CountDocuments(ctx, bson.M{"_id": classID}, options.Count().SetLimit(1))
		if cerr != nil {
			return "", fmt.Errorf("check class: %w", cerr)
		}
		if n == 0 {
			return "", repository.ErrNotFound
		}
		return "", repository.ErrClassFull
	}

	doc := bookingDoc{
		ClassID:       b.ClassID,
		UserEmail:     b.UserEmail,
		ClassName:     b.ClassName,
		Price:         b.Price,
		PaymentStatus: model.PaymentUnpaid,
		CreatedAt:     time.Now().UTC(),
	}
	if doc.ClassName == "" {
		doc.ClassName = cls.Name
	}
	if doc.Price == 0 {
		doc.Price = cls.Price
	}

	res, err := r.bookings.InsertOne(ctx, doc)
	if err != nil {
		r.releaseSeat(ctx, classID)
		return "", fmt.Errorf("insert booking: %w", err)
	}

	*b = doc.toModel()
	b.ID = insertedHex(res)
	return b.ID, nil
}

// releaseSeat hands a seat back to the class. It outlives the caller's
// context so a cancelled request still undoes its increment.
func (r *BookingRepository) releaseSeat(ctx context.Context, classID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	_, err := r.classes.UpdateOne(ctx,
		bson.M{"_id": classID, "enrolled": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"enrolled": -1}},
	)
	if err != nil {
		r.log.Error("failed to release seat",
			slog.String("class_id", classID.Hex()),
			slog.Any("error", err),
		)
	}
}

// List returns bookings matching the filter.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	filter := bson.M{}
	if f.PaidOnly {
		filter["paymentStatus"] = model.PaymentPaid
	}
	if f.UserEmail != "" {
		filter["email"] = f.UserEmail
	}

	cur, err := r.bookings.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	var docs []bookingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}

	bookings := make([]model.Booking, 0, len(docs))
	for _, d := range docs {
		bookings = append(bookings, d.toModel())
	}
	return bookings, nil
}

// GetByID returns a single booking or repository.ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc bookingDoc
	if err := r.bookings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b := doc.toModel()
	return &b, nil
}

// Exists reports whether email holds a booking for the class.
func (r *BookingRepository) Exists(ctx context.Context, email, classID string) (bool, error) {
	n, err := r.bookings.CountDocuments(ctx,
		bson.M{"email": email, "classId": classID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("check booking: %w", err)
	}
	return n > 0, nil
}

// MarkPaid records the transaction and flips the booking to paid. The
// update upserts, so an unknown id leaves a bare paid document behind.
func (r *BookingRepository) MarkPaid(ctx context.Context, id, transactionID string) (model.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}
	res, err := r.bookings.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set": bson.M{
				"paymentStatus": model.PaymentPaid,
				"transactionId": transactionID,
			},
			"$setOnInsert": bson.M{"createdAt": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("mark booking paid: %w", err)
	}
	return updateResult(res), nil
}

// Delete removes a booking and gives its seat back to the class.
func (r *BookingRepository) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}

	var doc bookingDoc
	err = r.bookings.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.DeleteResult{Acknowledged: true}, nil
		}
		return model.DeleteResult{}, fmt.Errorf("delete booking: %w", err)
	}

	if classID, err := primitive.ObjectIDFromHex(doc.ClassID); err == nil {
		r.releaseSeat(ctx, classID)
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}
