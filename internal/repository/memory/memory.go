// Package memory implements the store interfaces in process memory. It is
// used for local development (STORE_DRIVER=memory) and by the tests.
// All three collections share one lock so a reservation touches a class and
// a booking atomically.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// Store holds every collection.
type Store struct {
	mu       sync.RWMutex
	classes  map[string]*model.ClassListing
	users    map[string]*model.UserAccount
	bookings map[string]*model.Booking
	seq      int64
	order    map[string]int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		classes:  make(map[string]*model.ClassListing),
		users:    make(map[string]*model.UserAccount),
		bookings: make(map[string]*model.Booking),
		order:    make(map[string]int64),
	}
}

// Classes returns the class repository view of the store.
func (s *Store) Classes() *ClassRepository { return &ClassRepository{s: s} }

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Bookings returns the booking repository view of the store.
func (s *Store) Bookings() *BookingRepository { return &BookingRepository{s: s} }

// newID must be called with the write lock held.
func (s *Store) newID() string {
	id := uuid.New().String()
	s.seq++
	s.order[id] = s.seq
	return id
}

func (s *Store) byInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return nil
}

// ClassRepository is the classes collection.
type ClassRepository struct{ s *Store }

// Create inserts a new class with a zero enrolled count.
func (r *ClassRepository) Create(_ context.Context, c *model.ClassListing) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c.ID = r.s.newID()
	c.Enrolled = 0
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.s.classes[c.ID] = &cp
	return c.ID, nil
}

// List returns classes matching the filter.
func (r *ClassRepository) List(_ context.Context, f model.ClassFilter) ([]model.ClassListing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]string, 0, len(r.s.classes))
	for id, c := range r.s.classes {
		if f.InstructorEmail != "" && c.InstructorEmail != f.InstructorEmail {
			continue
		}
		ids = append(ids, id)
	}
	r.s.byInsertion(ids)

	out := make([]model.ClassListing, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.classes[id])
	}
	if f.SortByEnrolled {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Enrolled > out[j].Enrolled })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// GetByID returns a single class or repository.ErrNotFound.
func (r *ClassRepository) GetByID(_ context.Context, id string) (*model.ClassListing, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Update sets the whitelisted fields present in u.
func (r *ClassRepository) Update(_ context.Context, id string, u model.ClassUpdate) (model.UpdateResult, error) {
	if err := checkID(id); err != nil {
		return model.UpdateResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.classes[id]
	if !ok {
		return model.UpdateResult{Acknowledged: true}, nil
	}
	before := *c
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Image != nil {
		c.Image = *u.Image
	}
	if u.Seats != nil {
		c.Seats = *u.Seats
	}
	if u.Price != nil {
		c.Price = *u.Price
	}
	res := model.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if *c != before {
		res.ModifiedCount = 1
	}
	return res, nil
}

// Delete removes a class. Bookings that reference it are left in place.
func (r *ClassRepository) Delete(_ context.Context, id string) (model.DeleteResult, error) {
	if err := checkID(id); err != nil {
		return model.DeleteResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.classes[id]; !ok {
		return model.DeleteResult{Acknowledged: true}, nil
	}
	delete(r.s.classes, id)
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// UserRepository is the users collection.
type UserRepository struct{ s *Store }

// FindByEmail returns the account registered under email or repository.ErrNotFound.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*model.UserAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create inserts a new account. A taken email yields repository.ErrDuplicate.
func (r *UserRepository) Create(_ context.Context, u *model.UserAccount) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return "", repository.ErrDuplicate
		}
	}
	u.ID = r.s.newID()
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.s.users[u.ID] = &cp
	return u.ID, nil
}

// List returns accounts matching the filter.
func (r *UserRepository) List(_ context.Context, f model.UserFilter) ([]model.UserAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]string, 0, len(r.s.users))
	for id, u := range r.s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		ids = append(ids, id)
	}
	r.s.byInsertion(ids)
	if f.Limit > 0 && len(ids) > f.Limit {
		ids = ids[:f.Limit]
	}

	out := make([]model.UserAccount, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.users[id])
	}
	return out, nil
}

// SetRole changes an account's role.
func (r *UserRepository) SetRole(_ context.Context, id, role string) (model.UpdateResult, error) {
	if err := checkID(id); err != nil {
		return model.UpdateResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return model.UpdateResult{Acknowledged: true}, nil
	}
	res := model.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if u.Role != role {
		u.Role = role
		res.ModifiedCount = 1
	}
	return res, nil
}

// Delete removes an account.
func (r *UserRepository) Delete(_ context.Context, id string) (model.DeleteResult, error) {
	if err := checkID(id); err != nil {
		return model.DeleteResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return model.DeleteResult{Acknowledged: true}, nil
	}
	delete(r.s.users, id)
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// BookingRepository is the bookings collection.
type BookingRepository struct{ s *Store }

// Reserve takes a seat in the class and records the booking under one lock.
func (r *BookingRepository) Reserve(_ context.Context, b *model.Booking) (string, error) {
	if err := checkID(b.ClassID); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.classes[b.ClassID]
	if !ok {
		return "", repository.ErrNotFound
	}
	if c.IsFull() {
		return "", repository.ErrClassFull
	}
	c.Enrolled++

	b.ID = r.s.newID()
	b.PaymentStatus = model.PaymentUnpaid
	b.TransactionID = nil
	b.CreatedAt = time.Now().UTC()
	if b.ClassName == "" {
		b.ClassName = c.Name
	}
	if b.Price == 0 {
		b.Price = c.Price
	}
	cp := *b
	r.s.bookings[b.ID] = &cp
	return b.ID, nil
}

// List returns bookings matching the filter in insertion order.
func (r *BookingRepository) List(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]string, 0, len(r.s.bookings))
	for id, b := range r.s.bookings {
		if f.PaidOnly && b.PaymentStatus != model.PaymentPaid {
			continue
		}
		if f.UserEmail != "" && b.UserEmail != f.UserEmail {
			continue
		}
		ids = append(ids, id)
	}
	r.s.byInsertion(ids)

	out := make([]model.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.bookings[id])
	}
	return out, nil
}

// GetByID returns a single booking or repository.ErrNotFound.
func (r *BookingRepository) GetByID(_ context.Context, id string) (*model.Booking, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// Exists reports whether email holds a booking for the class.
func (r *BookingRepository) Exists(_ context.Context, email, classID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.bookings {
		if b.ClassID == classID && b.UserEmail == email {
			return true, nil
		}
	}
	return false, nil
}

// MarkPaid records the transaction and flips the booking to paid, creating
// a bare paid booking when id is unknown.
func (r *BookingRepository) MarkPaid(_ context.Context, id, transactionID string) (model.UpdateResult, error) {
	if err := checkID(id); err != nil {
		return model.UpdateResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := transactionID
	b, ok := r.s.bookings[id]
	if !ok {
		r.s.seq++
		r.s.order[id] = r.s.seq
		r.s.bookings[id] = &model.Booking{
			ID:            id,
			PaymentStatus: model.PaymentPaid,
			TransactionID: &tx,
			CreatedAt:     time.Now().UTC(),
		}
		return model.UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: id}, nil
	}

	res := model.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if b.PaymentStatus != model.PaymentPaid || b.TransactionID == nil || *b.TransactionID != tx {
		res.ModifiedCount = 1
	}
	b.PaymentStatus = model.PaymentPaid
	b.TransactionID = &tx
	return res, nil
}

// Delete removes a booking and gives its seat back to the class.
func (r *BookingRepository) Delete(_ context.Context, id string) (model.DeleteResult, error) {
	if err := checkID(id); err != nil {
		return model.DeleteResult{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return model.DeleteResult{Acknowledged: true}, nil
	}
	delete(r.s.bookings, id)
	if c, ok := r.s.classes[b.ClassID]; ok && c.Enrolled > 0 {
		c.Enrolled--
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}
