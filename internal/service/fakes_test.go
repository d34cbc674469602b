package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/veridata/consent-server-go/internal/model"
)

// In-memory repository fakes shared by the service tests.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := &model.User{
		ID:        xid.New().String(),
		Email:     params.Email,
		Name:      params.Name,
		Provider:  params.Provider,
		CreatedAt: time.Now(),
	}
	r.users[user.ID] = user
	return user, nil
}

type fakeConnectionRepo struct {
	mu          sync.Mutex
	connections map[string]*model.Connection // keyed by userID+provider
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{connections: make(map[string]*model.Connection)}
}

func connKey(userID, provider string) string {
	return userID + "|" + provider
}

func (r *fakeConnectionRepo) FindByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Connection
	for _, c := range r.connections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) FindByUserAndProvider(ctx context.Context, userID, provider string) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections[connKey(userID, provider)], nil
}

func (r *fakeConnectionRepo) Upsert(ctx context.Context, params model.UpsertConnectionParams) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey(params.UserID, params.Provider)
	existing := r.connections[key]

	conn := &model.Connection{
		ID:           xid.New().String(),
		UserID:       params.UserID,
		Provider:     params.Provider,
		Status:       params.Status,
		DataType:     params.DataType,
		AccessToken:  params.AccessToken,
		DataCount:    params.DataCount,
		TrustScore:   params.TrustScore,
		LastSyncedAt: time.Now(),
	}
	if existing != nil {
		conn.ID = existing.ID
		if params.AccessToken == nil {
			conn.AccessToken = existing.AccessToken
		}
	}
	r.connections[key] = conn
	return conn, nil
}

func (r *fakeConnectionRepo) UpdateDataCount(ctx context.Context, id string, dataCount int) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		if c.ID == id {
			c.DataCount = dataCount
			c.LastSyncedAt = time.Now()
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeConnectionRepo) Delete(ctx context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := connKey(userID, provider)
	if _, ok := r.connections[key]; !ok {
		return sql.ErrNoRows
	}
	delete(r.connections, key)
	return nil
}

func (r *fakeConnectionRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, c := range r.connections {
		if c.UserID == userID {
			delete(r.connections, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []*model.ActivityLog
}

func (r *fakeActivityRepo) Append(ctx context.Context, params model.AppendActivityParams) (*model.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &model.ActivityLog{
		ID:        xid.New().String(),
		UserID:    params.UserID,
		AppName:   params.AppName,
		Action:    params.Action,
		Status:    params.Status,
		CreatedAt: time.Now(),
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeActivityRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ActivityLog
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) last() *model.ActivityLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*model.DataCategory
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[string]*model.DataCategory)}
}

func (r *fakeCategoryRepo) FindByUser(ctx context.Context, userID string) ([]*model.DataCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.DataCategory
	for _, c := range r.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCategoryRepo) FindByID(ctx context.Context, id string) (*model.DataCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.categories[id], nil
}

func (r *fakeCategoryRepo) Create(ctx context.Context, params model.CreateDataCategoryParams) (*model.DataCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category := &model.DataCategory{
		ID:            xid.New().String(),
		UserID:        params.UserID,
		Name:          params.Name,
		Description:   params.Description,
		Source:        params.Source,
		Level:         params.Level,
		Price:         params.Price,
		LastUpdatedAt: time.Now(),
	}
	r.categories[category.ID] = category
	return category, nil
}

func (r *fakeCategoryRepo) UpdateLevel(ctx context.Context, id, level string, price *float64, consentHash string) (*model.DataCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category, ok := r.categories[id]
	if !ok {
		return nil, nil
	}
	category.Level = level
	if price != nil {
		category.Price = *price
	}
	category.ConsentHash = &consentHash
	category.LastUpdatedAt = time.Now()
	// Return a snapshot, as a real repository's RETURNING scan would;
	// handing out the live map entry lets later updates mutate earlier
	// return values through the shared pointer.
	snapshot := *category
	return &snapshot, nil
}

type fakeNotarizationRepo struct {
	mu      sync.Mutex
	records []*model.Notarization
	created chan *model.Notarization
}

func newFakeNotarizationRepo() *fakeNotarizationRepo {
	return &fakeNotarizationRepo{created: make(chan *model.Notarization, 8)}
}

func (r *fakeNotarizationRepo) Create(ctx context.Context, userID, categoryID, consentHash string, signature *string) (*model.Notarization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := &model.Notarization{
		ID:              xid.New().String(),
		UserID:          userID,
		CategoryID:      categoryID,
		ConsentHash:     consentHash,
		LedgerSignature: signature,
		CreatedAt:       time.Now(),
	}
	r.records = append(r.records, record)
	r.created <- record
	return record, nil
}

func (r *fakeNotarizationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notarization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notarization
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].UserID == userID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

// fakeNotary records anchor calls and returns a fixed signature (or an
// error, or nothing, depending on configuration).
type fakeNotary struct {
	mu        sync.Mutex
	signature string
	err       error
	calls     []string // consent hashes in call order
	anchored  chan string
}

func newFakeNotary(signature string, err error) *fakeNotary {
	return &fakeNotary{signature: signature, err: err, anchored: make(chan string, 8)}
}

func (n *fakeNotary) AnchorConsent(ctx context.Context, userID, categoryName, consentHash string) (string, error) {
	n.mu.Lock()
	n.calls = append(n.calls, consentHash)
	n.mu.Unlock()
	n.anchored <- consentHash
	return n.signature, n.err
}

// fakeFetcher returns a fixed data count for every provider.
type fakeFetcher struct {
	count int
	err   error
	calls int
}

func (f *fakeFetcher) FetchDataCount(ctx context.Context, providerName, accessToken string) (int, error) {
	f.calls++
	return f.count, f.err
}
