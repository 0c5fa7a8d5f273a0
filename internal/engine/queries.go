package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
)

// RequestView is a request as shown on a dashboard.
type RequestView struct {
	models.Request
	HasUnread bool `json:"has_unread"`
	// MyOffer is the viewing provider's active offer, if any.
	MyOffer *models.Offer `json:"my_offer,omitempty"`
}

// canView: owners and accepted providers always; other providers only while
// the request is open for offers.
func canView(r models.Request, actor models.User) bool {
	switch actor.Role {
	case models.RoleRequester:
		return actor.Email == r.RequesterEmail
	case models.RoleProvider:
		if r.Status == models.StatusPending {
			return actor.Email != r.RequesterEmail
		}
		return actor.Email == r.ProviderEmail()
	}
	return false
}

// VisibleRequests lists what the actor's dashboard shows: a requester's own
// requests, or for a provider the open requests plus the ones they won.
func (s *Service) VisibleRequests(ctx context.Context, actor models.User) ([]RequestView, error) {
	all, err := s.store.ListRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	feed, err := s.store.ListNotifications(ctx, actor.Email)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := []RequestView{}
	for _, r := range all {
		if !canView(r, actor) {
			continue
		}
		v := RequestView{Request: r, HasUnread: market.Feed(feed).HasUnreadForRequest(r.ID, actor.Email)}
		if actor.Role == models.RoleProvider {
			if o, ok := market.ActiveOffer(r, actor.Email); ok {
				v.MyOffer = &o
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// OpenRequest returns the request detail and marks the viewer's
// notifications about it as read.
func (s *Service) OpenRequest(ctx context.Context, actor models.User, id int64) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return models.Request{}, fmt.Errorf("load request %d: %w", id, err)
	}
	if r == nil {
		return models.Request{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	if !canView(*r, actor) {
		return models.Request{}, fmt.Errorf("view request %d by %s: %w", id, actor.Email, market.ErrForbidden)
	}

	err = s.updateFeed(ctx, actor.Email, func(f market.Feed) market.Feed {
		return f.ClearForRequest(id, actor.Email)
	})
	if err != nil {
		s.logger.Error("clear notifications", slog.Int64("request_id", id), slog.Any("err", err))
	}
	return *r, nil
}

// Notifications returns the recipient's feed newest first and the unread count.
func (s *Service) Notifications(ctx context.Context, recipient string) (market.Feed, int, error) {
	feed, err := s.store.ListNotifications(ctx, recipient)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	f := market.Feed(feed)
	return f.ForRecipient(recipient), f.UnreadCount(recipient), nil
}

func (s *Service) MarkRead(ctx context.Context, recipient, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateFeed(ctx, recipient, func(f market.Feed) market.Feed { return f.MarkRead(id) })
}

func (s *Service) MarkAllRead(ctx context.Context, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateFeed(ctx, recipient, func(f market.Feed) market.Feed { return f.MarkAllRead(recipient) })
}

// updateFeed rewrites the recipient's feed only when fn changed it.
func (s *Service) updateFeed(ctx context.Context, recipient string, fn func(market.Feed) market.Feed) error {
	feed, err := s.store.ListNotifications(ctx, recipient)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	next := fn(market.Feed(feed))
	if !next.Changed(feed) {
		return nil
	}
	if err := s.store.ReplaceNotifications(ctx, recipient, next); err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}
	return nil
}

// Activity lists the audit trail of a request, newest first. Only the owner
// and the accepted provider may read it.
func (s *Service) Activity(ctx context.Context, actor models.User, id int64, limit, offset int) ([]models.Activity, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request %d: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	if !isOwner(*r, actor) && !isParticipant(*r, actor) {
		return nil, fmt.Errorf("activity of request %d by %s: %w", id, actor.Email, market.ErrForbidden)
	}
	acts, err := s.store.ListByRequest(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if acts == nil {
		acts = []models.Activity{}
	}
	return acts, nil
}

type AchievementStatus struct {
	market.Achievement
	Unlocked bool `json:"unlocked"`
}

// ProviderProfile is the public view of a provider.
type ProviderProfile struct {
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	Area          string              `json:"area,omitempty"`
	Skills        string              `json:"skills,omitempty"`
	City          string              `json:"city,omitempty"`
	State         string              `json:"state,omitempty"`
	Level         int                 `json:"level"`
	XP            int                 `json:"xp"`
	XPToNextLevel int                 `json:"xp_to_next_level"`
	RatingsCount  int                 `json:"ratings_count"`
	AverageRating *float64            `json:"average_rating,omitempty"`
	Achievements  []AchievementStatus `json:"achievements"`
}

func NewProviderProfile(u models.User) ProviderProfile {
	u = market.Normalize(u)
	p := ProviderProfile{
		Email:         u.Email,
		Name:          u.Name,
		Area:          u.Area,
		Skills:        u.Skills,
		City:          u.Address.City,
		State:         u.Address.State,
		Level:         u.Level,
		XP:            u.XP,
		XPToNextLevel: market.XPToNextLevel(u),
		RatingsCount:  len(u.Ratings),
	}
	if avg, ok := u.AverageRating(); ok {
		p.AverageRating = &avg
	}
	for _, a := range market.Achievements {
		p.Achievements = append(p.Achievements, AchievementStatus{Achievement: a, Unlocked: u.HasAchievement(a.ID)})
	}
	return p
}

func (s *Service) ProviderProfile(ctx context.Context, email string) (ProviderProfile, error) {
	u, err := s.store.GetUser(ctx, models.RoleProvider, email)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("load provider: %w", err)
	}
	if u == nil {
		return ProviderProfile{}, fmt.Errorf("provider %s: %w", email, market.ErrNotFound)
	}
	return NewProviderProfile(*u), nil
}
