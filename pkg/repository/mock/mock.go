package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is an in-memory repository for tests. Setting one of the *Err fields
// makes the matching write fail.
type Store struct {
	mu            sync.Mutex
	users         map[string]models.User
	requests      map[int64]models.Request
	notifications map[string][]models.Notification
	activities    []models.Activity

	CreateErr  error
	SaveErr    error
	NotifyErr  error
	ActivityCh chan models.Activity
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]models.User),
		requests:      make(map[int64]models.Request),
		notifications: make(map[string][]models.Notification),
	}
}

func (m *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.users[u.Key()]; ok {
		return repository.ErrAlreadyExists
	}
	m.users[u.Key()] = u.Clone()
	return nil
}

func (m *Store) GetUser(ctx context.Context, role models.Role, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[models.UserKey(role, email)]
	if !ok {
		return nil, nil
	}
	c := u.Clone()
	return &c, nil
}

func (m *Store) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.users[u.Key()] = u.Clone()
	return nil
}

func (m *Store) CreateRequest(ctx context.Context, r *models.Request) error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.requests[r.ID]; ok {
		return repository.ErrAlreadyExists
	}
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *Store) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (m *Store) ListRequests(ctx context.Context) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Store) SaveRequest(ctx context.Context, r *models.Request) error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *Store) SaveRatedRequest(ctx context.Context, r *models.Request, provider *models.User) error {
	if r == nil || provider == nil {
		return fmt.Errorf("request and provider are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.requests[r.ID] = r.Clone()
	m.users[provider.Key()] = provider.Clone()
	return nil
}

func (m *Store) DeleteRequest(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *Store) MaxRequestID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for id := range m.requests {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (m *Store) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Notification{}, m.notifications[recipient]...), nil
}

func (m *Store) ReplaceNotifications(ctx context.Context, recipient string, feed []models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NotifyErr != nil {
		return m.NotifyErr
	}
	m.notifications[recipient] = append([]models.Notification{}, feed...)
	return nil
}

func (m *Store) CreateActivity(ctx context.Context, a *models.Activity) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("activity is nil")
	}
	m.mu.Lock()
	a.ID = int64(len(m.activities) + 1)
	m.activities = append(m.activities, *a)
	ch := m.ActivityCh
	m.mu.Unlock()

	if ch != nil {
		ch <- *a
	}
	return a.ID, nil
}

func (m *Store) ListByRequest(ctx context.Context, requestID int64, limit, offset int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].RequestID == requestID {
			out = append(out, m.activities[i])
		}
	}
	if offset >= len(out) {
		return []models.Activity{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// RecordActivity lets the store act as a synchronous activity sink.
func (m *Store) RecordActivity(ctx context.Context, a models.Activity) error {
	_, err := m.CreateActivity(ctx, &a)
	return err
}
