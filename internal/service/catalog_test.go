package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository/memory"
)

func TestCatalogCreateValidation(t *testing.T) {
	svc := NewCatalogService(memory.New().Classes(), discardLogger())
	ctx := context.Background()

	if _, err := svc.Create(ctx, model.CreateClassRequest{Name: "x", Seats: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative seats: err = %v", err)
	}
	if _, err := svc.Create(ctx, model.CreateClassRequest{Name: "x", Seats: 1, Price: -5}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative price: err = %v", err)
	}

	seats := -3
	if _, err := svc.Update(ctx, "7b0e3c4a-1111-4222-8333-444455556666", model.ClassUpdate{Seats: &seats}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("update negative seats: err = %v", err)
	}
}

func TestCatalogListFilterSortLimit(t *testing.T) {
	store := memory.New()
	svc := NewCatalogService(store.Classes(), discardLogger())
	bookings := NewBookingService(store.Bookings(), store.Classes(), &recordingPublisher{}, discardLogger())
	ctx := context.Background()

	ids := map[string]string{}
	for _, c := range []struct{ name, instructor string }{
		{"waltz", "w@x.com"},
		{"tango", "t@x.com"},
		{"swing", "w@x.com"},
	} {
		res, err := svc.Create(ctx, model.CreateClassRequest{Name: c.name, Seats: 5, InstructorEmail: c.instructor})
		if err != nil {
			t.Fatalf("Create(%s): %v", c.name, err)
		}
		ids[c.name] = res.InsertedID
	}
	for _, email := range []string{"a@x.com", "b@x.com"} {
		if _, err := bookings.CreateBooking(ctx, model.CreateBookingRequest{ClassID: ids["swing"], UserEmail: email}); err != nil {
			t.Fatalf("CreateBooking: %v", err)
		}
	}
	if _, err := bookings.CreateBooking(ctx, model.CreateBookingRequest{ClassID: ids["tango"], UserEmail: "a@x.com"}); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	mine, err := svc.List(ctx, model.ClassFilter{InstructorEmail: "w@x.com"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("w@x.com classes = %d, want 2", len(mine))
	}

	top, err := svc.List(ctx, model.ClassFilter{SortByEnrolled: true, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(top) != 2 || top[0].Name != "swing" || top[1].Name != "tango" {
		t.Errorf("top classes = %+v", top)
	}
}

func TestCatalogGetUpdateDelete(t *testing.T) {
	svc := NewCatalogService(memory.New().Classes(), discardLogger())
	ctx := context.Background()

	res, err := svc.Create(ctx, model.CreateClassRequest{Name: "rumba", Seats: 4, Price: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name, price := "rumba II", 12.5
	upd, err := svc.Update(ctx, res.InsertedID, model.ClassUpdate{Name: &name, Price: &price})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.MatchedCount != 1 {
		t.Errorf("update result = %+v", upd)
	}

	c, err := svc.Get(ctx, res.InsertedID)
	if err != nil || c == nil {
		t.Fatalf("Get = %v, %v", c, err)
	}
	if c.Name != name || c.Price != price || c.Seats != 4 || c.Enrolled != 0 {
		t.Errorf("class = %+v", c)
	}

	del, err := svc.Delete(ctx, res.InsertedID)
	if err != nil || del.DeletedCount != 1 {
		t.Fatalf("Delete = %+v, %v", del, err)
	}
	if c, err := svc.Get(ctx, res.InsertedID); c != nil || err != nil {
		t.Errorf("Get after delete = %+v, %v", c, err)
	}
}
