//go:build integration

package mongodb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// openTestDatabase connects to MONGO_URI and hands out a database of its
// own that is dropped when the test ends.
func openTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	db := client.Database("rhythmax_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

type mongoFixture struct {
	db       *mongo.Database
	classes  *ClassRepository
	bookings *BookingRepository
}

func newMongoFixture(t *testing.T) *mongoFixture {
	t.Helper()
	db := openTestDatabase(t)
	if err := EnsureIndexes(context.Background(), db); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return &mongoFixture{
		db:       db,
		classes:  NewClassRepository(db),
		bookings: NewBookingRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func (f *mongoFixture) class(t *testing.T, seats int) string {
	t.Helper()
	id, err := f.classes.Create(context.Background(), &model.ClassListing{
		Name:            "Tango",
		Seats:           seats,
		Price:           20,
		InstructorEmail: "coach@x.com",
	})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	return id
}

func (f *mongoFixture) enrolled(t *testing.T, id string) int {
	t.Helper()
	c, err := f.classes.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get class: %v", err)
	}
	return c.Enrolled
}

func TestReserveConcurrentLastSeat(t *testing.T) {
	f := newMongoFixture(t)
	classID := f.class(t, 1)

	const n = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		booked, full int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.Reserve(context.Background(), &model.Booking{ClassID: classID, UserEmail: "a@x.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, repository.ErrClassFull):
				full++
			default:
				t.Errorf("Reserve: %v", err)
			}
		}()
	}
	wg.Wait()

	if booked != 1 || full != n-1 {
		t.Errorf("booked=%d full=%d, want 1 and %d", booked, full, n-1)
	}
	if got := f.enrolled(t, classID); got != 1 {
		t.Errorf("enrolled = %d, want 1", got)
	}
	count, err := f.db.Collection(BookingsCollection).CountDocuments(context.Background(), bson.M{"classId": classID})
	if err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 1 {
		t.Errorf("stored bookings = %d, want 1", count)
	}
}

func TestReserveSameEmailTwice(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	// an index left by an older deployment
	_, err := db.Collection(BookingsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "classId", Value: 1}, {Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create unique index: %v", err)
	}
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	f := &mongoFixture{
		db:       db,
		classes:  NewClassRepository(db),
		bookings: NewBookingRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	classID := f.class(t, 3)

	for i := 0; i < 2; i++ {
		if _, err := f.bookings.Reserve(ctx, &model.Booking{ClassID: classID, UserEmail: "a@x.com"}); err != nil {
			t.Fatalf("Reserve %d: %v", i+1, err)
		}
	}
	if got := f.enrolled(t, classID); got != 2 {
		t.Errorf("enrolled = %d, want 2", got)
	}
}

func TestDeleteReleasesSeat(t *testing.T) {
	f := newMongoFixture(t)
	ctx := context.Background()
	classID := f.class(t, 1)

	id, err := f.bookings.Reserve(ctx, &model.Booking{ClassID: classID, UserEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := f.bookings.Reserve(ctx, &model.Booking{ClassID: classID, UserEmail: "b@x.com"}); !errors.Is(err, repository.ErrClassFull) {
		t.Fatalf("Reserve on a full class: %v", err)
	}

	res, err := f.bookings.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Errorf("DeletedCount = %d, want 1", res.DeletedCount)
	}
	if got := f.enrolled(t, classID); got != 0 {
		t.Errorf("enrolled after delete = %d, want 0", got)
	}
	if _, err := f.bookings.Reserve(ctx, &model.Booking{ClassID: classID, UserEmail: "b@x.com"}); err != nil {
		t.Errorf("Reserve after delete: %v", err)
	}

	res, err = f.bookings.Delete(ctx, id)
	if err != nil || res.DeletedCount != 0 {
		t.Errorf("second Delete = %+v, %v", res, err)
	}
	if got := f.enrolled(t, classID); got != 1 {
		t.Errorf("enrolled after repeated delete = %d, want 1", got)
	}
}

func TestMarkPaidUpsertsUnknownID(t *testing.T) {
	f := newMongoFixture(t)
	ctx := context.Background()
	id := primitive.NewObjectID().Hex()

	res, err := f.bookings.MarkPaid(ctx, id, "chrg_1")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if res.UpsertedCount != 1 || res.UpsertedID != id {
		t.Errorf("MarkPaid = %+v, want an upsert of %s", res, id)
	}
	b, err := f.bookings.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if b.PaymentStatus != model.PaymentPaid || b.TransactionID == nil || *b.TransactionID != "chrg_1" {
		t.Errorf("upserted booking = %+v", b)
	}
	if b.CreatedAt.IsZero() {
		t.Error("upserted booking has no createdAt")
	}

	res, err = f.bookings.MarkPaid(ctx, id, "chrg_1")
	if err != nil || res.MatchedCount != 1 || res.UpsertedCount != 0 {
		t.Errorf("second MarkPaid = %+v, %v", res, err)
	}
}
