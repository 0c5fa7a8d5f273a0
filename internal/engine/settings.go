package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
)

// Settings are the user-editable parts of a profile. Progression fields are
// not among them.
type Settings struct {
	Name        string         `json:"name"`
	Phone       string         `json:"phone"`
	Address     models.Address `json:"address"`
	ContactPref string         `json:"contact_pref"`
	Skills      string         `json:"skills"`
	Area        string         `json:"area"`
}

// Apply copies the settings onto u. Skills and area only apply to providers.
func (s Settings) Apply(u *models.User) {
	u.Name = strings.TrimSpace(s.Name)
	u.Phone = s.Phone
	u.Address = s.Address
	if s.ContactPref != "" {
		u.ContactPref = s.ContactPref
	}
	if u.IsProvider() {
		u.Skills = s.Skills
		u.Area = s.Area
	}
}

// UpdateSettings rewrites the profile fields of the stored user. The user is
// reloaded under the service lock so a rating applied in the meantime is kept.
func (s *Service) UpdateSettings(ctx context.Context, role models.Role, email string, set Settings) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.store.GetUser(ctx, role, email)
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return models.User{}, fmt.Errorf("%s %s: %w", role, email, market.ErrNotFound)
	}
	set.Apply(u)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("update %s %s: %w", role, email, err)
	}
	return market.Normalize(*u), nil
}
