package mocks

import (
	"context"
	"sync"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// MockUserRepository is a simple in-memory mock for the user repository
type MockUserRepository struct {
	mu    sync.Mutex
	Users map[int]*models.User

	SearchFunc func(term string, limit int) ([]models.User, error)
	Err        error

	SearchCalls int
}

// NewMockUserRepository creates an empty mock.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[int]*models.User)}
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if existing, ok := m.Users[user.BanchoID]; ok {
		existing.Username = user.Username
		existing.AvatarURL = user.AvatarURL
		return nil
	}
	stored := *user
	m.Users[user.BanchoID] = &stored
	return nil
}

func (m *MockUserRepository) GetByBanchoID(ctx context.Context, banchoID int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	user, ok := m.Users[banchoID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *MockUserRepository) SearchByUsername(ctx context.Context, term string, limit int) ([]models.User, error) {
	m.mu.Lock()
	m.SearchCalls++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(term, limit)
	}
	return []models.User{}, m.Err
}

func (m *MockUserRepository) Delete(ctx context.Context, banchoID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.Users[banchoID]
	delete(m.Users, banchoID)
	return ok, nil
}

func (m *MockUserRepository) SetSpecialBadge(ctx context.Context, banchoID int, badge, color *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if user, ok := m.Users[banchoID]; ok {
		user.SpecialBadge = badge
		user.SpecialBadgeColor = color
	}
	return nil
}

// MockAchievementRepository is a mock for rank counting
type MockAchievementRepository struct {
	CountAheadFunc  func(userID int, partition models.Partition, variant models.Variant) (int64, error)
	CountAheadCalls int
}

func (m *MockAchievementRepository) CountAhead(ctx context.Context, userID int, partition models.Partition, variant models.Variant) (int64, error) {
	m.CountAheadCalls++
	if m.CountAheadFunc != nil {
		return m.CountAheadFunc(userID, partition, variant)
	}
	return 0, nil
}

// MockProfileInvalidator records evicted profiles.
type MockProfileInvalidator struct {
	mu          sync.Mutex
	Invalidated []int
	Err         error
}

func (m *MockProfileInvalidator) InvalidateProfile(ctx context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Invalidated = append(m.Invalidated, userID)
	return m.Err
}
