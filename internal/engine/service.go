package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

// ActivitySink receives one entry per applied action.
type ActivitySink interface {
	RecordActivity(ctx context.Context, a models.Activity) error
}

// Service runs engine actions against a repository. Mutating calls are
// serialized: each one reads, transitions and writes before the next starts.
type Service struct {
	store     repository.Store
	engine    *Engine
	activity  ActivitySink
	retention int
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

type Option func(*Service)

func WithActivitySink(a ActivitySink) Option {
	return func(s *Service) { s.activity = a }
}

// WithRetention sets how many notifications each recipient keeps.
func WithRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retention = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		retention: market.DefaultRetention,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = New(s.now, market.NewIDSource())
	return s
}

func (s *Service) CreateRequest(ctx context.Context, actor models.User, d market.RequestDetails) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID, err := s.store.MaxRequestID(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("max request id: %w", err)
	}
	out, err := s.engine.CreateRequest(actor, maxID, d)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.store.CreateRequest(ctx, &out.Request); err != nil {
		return Outcome{}, fmt.Errorf("create request: %w", err)
	}
	s.record(ctx, actor, out)
	return out, nil
}

func (s *Service) EditRequest(ctx context.Context, actor models.User, id int64, d market.RequestDetails) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.EditRequest(r, actor, d)
	})
}

func (s *Service) DeleteRequest(ctx context.Context, actor models.User, id int64) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.DeleteRequest(r, actor)
	})
}

func (s *Service) SubmitOffer(ctx context.Context, actor models.User, id int64, price float64, message string) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.SubmitOffer(r, actor, price, message)
	})
}

func (s *Service) AcceptOffer(ctx context.Context, actor models.User, id int64, providerEmail string) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.AcceptOffer(r, actor, providerEmail)
	})
}

func (s *Service) DeclineOffer(ctx context.Context, actor models.User, id int64, providerEmail string) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.DeclineOffer(r, actor, providerEmail)
	})
}

// SendMessage is the hook for the chat collaborator's "message sent" event.
func (s *Service) SendMessage(ctx context.Context, actor models.User, id int64, text string) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.SendMessage(r, actor, text)
	})
}

func (s *Service) RequestClosure(ctx context.Context, actor models.User, id int64) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		return s.engine.RequestClosure(r, actor)
	})
}

func (s *Service) SubmitRating(ctx context.Context, actor models.User, id int64, stars int) (Outcome, error) {
	return s.apply(ctx, actor, id, func(r models.Request) (Outcome, error) {
		// let the engine report the request-level error before looking up the provider
		if err := market.CanRate(r, actor.Email); err != nil {
			return Outcome{Request: r}, err
		}
		provider, err := s.store.GetUser(ctx, models.RoleProvider, r.ProviderEmail())
		if err != nil {
			return Outcome{Request: r}, fmt.Errorf("load provider: %w", err)
		}
		if provider == nil {
			return Outcome{Request: r}, fmt.Errorf("provider %s: %w", r.ProviderEmail(), market.ErrNotFound)
		}
		return s.engine.SubmitRating(r, actor, *provider, stars)
	})
}

// apply loads request id, runs fn and persists the outcome. Nothing is
// written when fn fails.
func (s *Service) apply(ctx context.Context, actor models.User, id int64, fn func(models.Request) (Outcome, error)) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("load request %d: %w", id, err)
	}
	if r == nil {
		return Outcome{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}

	out, err := fn(*r)
	if err != nil {
		return Outcome{Request: *r}, err
	}

	switch {
	case out.Deleted:
		err = s.store.DeleteRequest(ctx, id)
	case out.Rating != nil:
		p := out.Rating.Profile
		err = s.store.SaveRatedRequest(ctx, &out.Request, &p)
	case out.Action == ActionMessageSent:
		// request unchanged
	default:
		err = s.store.SaveRequest(ctx, &out.Request)
	}
	if err != nil {
		return Outcome{Request: *r}, fmt.Errorf("persist %s: %w", out.Action, err)
	}

	s.deliver(ctx, out.Notifications)
	s.record(ctx, actor, out)
	return out, nil
}

// deliver appends each notification to its recipient's feed. Failures are
// logged; the action itself already succeeded.
func (s *Service) deliver(ctx context.Context, notes []models.Notification) {
	for _, n := range notes {
		if n.RecipientEmail == "" {
			continue
		}
		feed, err := s.store.ListNotifications(ctx, n.RecipientEmail)
		if err != nil {
			s.logger.Error("load notifications", slog.String("recipient", n.RecipientEmail), slog.Any("err", err))
			continue
		}
		next := market.Feed(feed).Emit(n, s.retention)
		if err := s.store.ReplaceNotifications(ctx, n.RecipientEmail, next); err != nil {
			s.logger.Error("store notifications", slog.String("recipient", n.RecipientEmail), slog.Any("err", err))
		}
	}
}

func (s *Service) record(ctx context.Context, actor models.User, out Outcome) {
	if s.activity == nil {
		return
	}
	a := models.Activity{
		RequestID:  out.Request.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     out.Action,
		Detail:     out.Detail,
		Created:    s.now().UTC().UnixMilli(),
	}
	if err := s.activity.RecordActivity(ctx, a); err != nil {
		s.logger.Warn("record activity", slog.String("action", out.Action), slog.Int64("request_id", out.Request.ID), slog.Any("err", err))
	}
}
