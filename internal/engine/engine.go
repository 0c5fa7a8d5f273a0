// Package engine applies marketplace actions to request aggregates. Engine
// holds the pure transition per action; Service loads and persists the
// aggregates around it.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
)

// Activity names recorded for every applied action.
const (
	ActionRequestCreated   = "request.created"
	ActionRequestEdited    = "request.edited"
	ActionRequestDeleted   = "request.deleted"
	ActionOfferSubmitted   = "offer.submitted"
	ActionOfferAccepted    = "offer.accepted"
	ActionOfferDeclined    = "offer.declined"
	ActionMessageSent      = "message.sent"
	ActionClosureRequested = "closure.requested"
	ActionRequestCompleted = "request.completed"
	ActionRatingSubmitted  = "rating.submitted"
)

const messagePreviewLen = 30

// Outcome is the result of one applied action: the new aggregate and the
// notifications to emit.
type Outcome struct {
	Action        string                `json:"action"`
	Request       models.Request        `json:"request"`
	Deleted       bool                  `json:"deleted,omitempty"`
	Notifications []models.Notification `json:"notifications"`
	// RatingPrompt asks the view layer to open the rating dialog.
	RatingPrompt bool                  `json:"rating_prompt"`
	Rating       *market.RatingOutcome `json:"rating,omitempty"`
	Detail       string                `json:"-"`
}

type Engine struct {
	now func() time.Time
	ids *market.IDSource
}

// New returns an Engine. A nil clock uses time.Now.
func New(now func() time.Time, ids *market.IDSource) *Engine {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = market.NewIDSource()
	}
	return &Engine{now: now, ids: ids}
}

func (e *Engine) stamp() (time.Time, int64) {
	t := e.now().UTC()
	return t, t.UnixMilli()
}

func (e *Engine) notify(kind models.NotificationKind, title, body string, requestID int64, recipient string) models.Notification {
	t, ms := e.stamp()
	return market.NewNotification(e.ids.New(t), kind, title, body, requestID, recipient, ms)
}

func isOwner(r models.Request, actor models.User) bool {
	return actor.Role == models.RoleRequester && actor.Email == r.RequesterEmail
}

// isParticipant checks the role as well as the email, so a user registered
// under both roles only acts as the side they are signed in as.
func isParticipant(r models.Request, actor models.User) bool {
	switch actor.Role {
	case models.RoleRequester:
		return actor.Email == r.RequesterEmail
	case models.RoleProvider:
		p := r.ProviderEmail()
		return p != "" && actor.Email == p
	}
	return false
}

func requireOwner(r models.Request, actor models.User, op string) error {
	if !isOwner(r, actor) {
		return fmt.Errorf("%s request %d by %s: %w", op, r.ID, actor.Email, market.ErrForbidden)
	}
	return nil
}

// CreateRequest opens a new pending request. maxID is the largest id in use.
func (e *Engine) CreateRequest(actor models.User, maxID int64, d market.RequestDetails) (Outcome, error) {
	t, ms := e.stamp()
	r, err := market.NewRequest(market.NextRequestID(t, maxID), actor, d, ms)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionRequestCreated, Request: r}, nil
}

func (e *Engine) EditRequest(r models.Request, actor models.User, d market.RequestDetails) (Outcome, error) {
	if err := requireOwner(r, actor, "edit"); err != nil {
		return Outcome{Request: r}, err
	}
	out, err := market.EditRequest(r, d)
	if err != nil {
		return Outcome{Request: r}, err
	}
	_, out.Updated = e.stamp()
	return Outcome{Action: ActionRequestEdited, Request: out}, nil
}

func (e *Engine) DeleteRequest(r models.Request, actor models.User) (Outcome, error) {
	if err := requireOwner(r, actor, "delete"); err != nil {
		return Outcome{Request: r}, err
	}
	if err := market.CanDelete(r); err != nil {
		return Outcome{Request: r}, err
	}
	return Outcome{Action: ActionRequestDeleted, Request: r, Deleted: true}, nil
}

func (e *Engine) SubmitOffer(r models.Request, actor models.User, price float64, message string) (Outcome, error) {
	if actor.Role != models.RoleProvider {
		return Outcome{Request: r}, fmt.Errorf("offer by %s: %w", actor.Role, market.ErrForbidden)
	}
	if actor.Email == r.RequesterEmail {
		return Outcome{Request: r}, fmt.Errorf("offer on own request %d: %w", r.ID, market.ErrForbidden)
	}

	t, ms := e.stamp()
	out, err := market.SubmitOffer(r, models.Offer{
		ID:            e.ids.New(t),
		ProviderEmail: actor.Email,
		ProviderName:  actor.Name,
		Price:         price,
		Message:       strings.TrimSpace(message),
		Created:       ms,
	})
	if err != nil {
		return Outcome{Request: r}, err
	}
	out.Updated = ms

	n := e.notify(models.KindOffer, "New offer!",
		fmt.Sprintf("%s sent an offer of %.2f for %q", actor.Name, price, r.Title),
		r.ID, r.RequesterEmail)
	return Outcome{
		Action:        ActionOfferSubmitted,
		Request:       out,
		Notifications: []models.Notification{n},
		Detail:        fmt.Sprintf("price=%.2f", price),
	}, nil
}

func (e *Engine) AcceptOffer(r models.Request, actor models.User, providerEmail string) (Outcome, error) {
	if err := requireOwner(r, actor, "accept offer on"); err != nil {
		return Outcome{Request: r}, err
	}
	out, err := market.AcceptOffer(r, providerEmail)
	if err != nil {
		return Outcome{Request: r}, err
	}
	_, out.Updated = e.stamp()

	n := e.notify(models.KindStatus, "Offer accepted!",
		fmt.Sprintf("Your offer for %q was accepted. Chat is now unlocked!", r.Title),
		r.ID, providerEmail)
	return Outcome{
		Action:        ActionOfferAccepted,
		Request:       out,
		Notifications: []models.Notification{n},
		Detail:        "provider=" + providerEmail,
	}, nil
}

func (e *Engine) DeclineOffer(r models.Request, actor models.User, providerEmail string) (Outcome, error) {
	if err := requireOwner(r, actor, "decline offer on"); err != nil {
		return Outcome{Request: r}, err
	}
	out, err := market.DeclineOffer(r, providerEmail)
	if err != nil {
		return Outcome{Request: r}, err
	}
	_, out.Updated = e.stamp()

	n := e.notify(models.KindStatus, "Offer declined",
		fmt.Sprintf("Your offer for %q was declined.", r.Title),
		r.ID, providerEmail)
	return Outcome{
		Action:        ActionOfferDeclined,
		Request:       out,
		Notifications: []models.Notification{n},
		Detail:        "provider=" + providerEmail,
	}, nil
}

// SendMessage only notifies the other participant; the transcript lives in
// the chat collaborator.
func (e *Engine) SendMessage(r models.Request, actor models.User, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{Request: r}, fmt.Errorf("empty message: %w", market.ErrValidation)
	}
	if r.Status != models.StatusConfirmed {
		return Outcome{Request: r}, fmt.Errorf("chat on %s request %d: %w", r.Status, r.ID, market.ErrInvalidState)
	}
	if !isParticipant(r, actor) {
		return Outcome{Request: r}, fmt.Errorf("chat on request %d by %s: %w", r.ID, actor.Email, market.ErrForbidden)
	}

	n := e.notify(models.KindMessage, "New message: "+r.Title, fmt.Sprintf("%q", preview(text)),
		r.ID, r.Counterparty(actor.Email))
	return Outcome{
		Action:        ActionMessageSent,
		Request:       r,
		Notifications: []models.Notification{n},
	}, nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= messagePreviewLen {
		return text
	}
	return string(runes[:messagePreviewLen]) + "..."
}

// RequestClosure records one side of the mutual closure and tells the other side.
func (e *Engine) RequestClosure(r models.Request, actor models.User) (Outcome, error) {
	if !isParticipant(r, actor) {
		return Outcome{Request: r}, fmt.Errorf("%s closing request %d: %w", actor.Email, r.ID, market.ErrForbidden)
	}
	res, err := market.RequestClosure(r, actor.Email)
	if err != nil {
		return Outcome{Request: r}, err
	}
	_, res.Request.Updated = e.stamp()

	n := e.notify(models.KindStatus, "Closure signal",
		fmt.Sprintf("The %s marked the service %q as finished.", actor.Role, r.Title),
		r.ID, r.Counterparty(actor.Email))

	action := ActionClosureRequested
	if res.Completed {
		action = ActionRequestCompleted
	}
	return Outcome{
		Action:        action,
		Request:       res.Request,
		Notifications: []models.Notification{n},
		RatingPrompt:  res.RatingPrompt,
	}, nil
}

// SubmitRating rates the accepted provider of a completed request once.
func (e *Engine) SubmitRating(r models.Request, actor models.User, provider models.User, stars int) (Outcome, error) {
	if actor.Role != models.RoleRequester {
		return Outcome{Request: r}, fmt.Errorf("rating by %s: %w", actor.Role, market.ErrForbidden)
	}
	if err := market.CanRate(r, actor.Email); err != nil {
		return Outcome{Request: r}, err
	}
	if provider.Email != r.ProviderEmail() {
		return Outcome{Request: r}, fmt.Errorf("provider %s did not serve request %d: %w", provider.Email, r.ID, market.ErrValidation)
	}

	rating, err := market.ApplyRating(provider, stars)
	if err != nil {
		return Outcome{Request: r}, err
	}
	out := r.Clone()
	out.Rated = true
	_, out.Updated = e.stamp()

	return Outcome{
		Action:  ActionRatingSubmitted,
		Request: out,
		Rating:  &rating,
		Detail:  fmt.Sprintf("stars=%d xp=%d", stars, rating.XPGained),
	}, nil
}
