package call

import (
	"context"
	"sync"

	"better-call/internal/models"
	"better-call/internal/store"
)

// fakeUsers is an in-memory credit ledger with the same conditional
// decrement semantics as the real stores.
type fakeUsers struct {
	mu           sync.Mutex
	credits      map[string]int
	decrementErr error
	incrementErr error
	incrementLog []int
}

func newFakeUsers(credits map[string]int) *fakeUsers {
	if credits == nil {
		credits = make(map[string]int)
	}
	return &fakeUsers{credits: credits}
}

func (f *fakeUsers) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits[email] = 0
	return 1, nil
}

func (f *fakeUsers) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credits[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.User{Email: email, Credits: c}, nil
}

func (f *fakeUsers) GetCredits(ctx context.Context, email string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credits[email], nil
}

func (f *fakeUsers) IncrementCredits(ctx context.Context, email string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.credits[email] += amount
	f.incrementLog = append(f.incrementLog, amount)
	return nil
}

func (f *fakeUsers) DecrementCredit(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decrementErr != nil {
		return false, f.decrementErr
	}
	if f.credits[email] > 0 {
		f.credits[email]--
		return true, nil
	}
	return false, nil
}

type fakeCalls struct {
	mu        sync.Mutex
	recs      []models.CallRequest
	nextID    int64
	insertErr error
	fulfilled []int64
}

func (f *fakeCalls) InsertCallRequest(ctx context.Context, rec *models.CallRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	r := *rec
	r.ID = f.nextID
	if r.Status == "" {
		r.Status = models.CallStatusPending
	}
	f.recs = append(f.recs, r)
	return r.ID, nil
}

func (f *fakeCalls) LastCallByEmail(ctx context.Context, email string) (*models.CallRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].Email == email {
			r := f.recs[i]
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCalls) MarkCallFulfilled(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id {
			f.recs[i].Status = models.CallStatusFulfilled
		}
	}
	f.fulfilled = append(f.fulfilled, id)
	return nil
}

func (f *fakeCalls) ListCallRequests(ctx context.Context, limit, offset int) ([]models.CallRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.CallRequest, len(f.recs))
	copy(out, f.recs)
	return out, nil
}

type fakeEnricher struct {
	result string
	err    error
}

func (f *fakeEnricher) EnrichPrompt(ctx context.Context, name, rawPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeDialer struct {
	sid   string
	err   error
	dials int
}

func (f *fakeDialer) Dial(ctx context.Context, destination string) (string, error) {
	f.dials++
	if f.err != nil {
		return "", f.err
	}
	return f.sid, nil
}

type fakeCheckout struct {
	resp *models.PaymentResponse
	err  error
}

func (f *fakeCheckout) CreateCheckout(ctx context.Context, email, description, successURL, cancelURL string) (*models.PaymentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}
