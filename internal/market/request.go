package market

import (
	"fmt"
	"strings"

	"github.com/garnizeh/servicehub/pkg/models"
)

// allowed lists the only forward moves of a request.
var allowed = map[models.RequestStatus]models.RequestStatus{
	models.StatusPending:   models.StatusConfirmed,
	models.StatusConfirmed: models.StatusCompleted,
}

func transition(from, to models.RequestStatus) error {
	if next, ok := allowed[from]; ok && next == to {
		return nil
	}
	return fmt.Errorf("transition %s -> %s: %w", from, to, ErrInvalidState)
}

// RequestDetails are the requester-editable fields of a request.
type RequestDetails struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Location      string         `json:"location"`
	Budget        float64        `json:"budget"`
	PaymentMethod string         `json:"payment_method"`
	Urgency       models.Urgency `json:"urgency"`
}

func (d RequestDetails) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrValidation)
	}
	if err := ValidatePrice(d.Budget); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if !d.Urgency.Valid() {
		return fmt.Errorf("urgency %q: %w", d.Urgency, ErrValidation)
	}
	return nil
}

func (d RequestDetails) apply(r *models.Request) {
	r.Title = strings.TrimSpace(d.Title)
	r.Description = d.Description
	r.Location = d.Location
	r.Budget = d.Budget
	r.PaymentMethod = d.PaymentMethod
	r.Urgency = d.Urgency
}

// NewRequest builds a pending request owned by requester.
func NewRequest(id int64, requester models.User, d RequestDetails, now int64) (models.Request, error) {
	if requester.Role != models.RoleRequester {
		return models.Request{}, fmt.Errorf("create request as %s: %w", requester.Role, ErrForbidden)
	}
	if err := d.Validate(); err != nil {
		return models.Request{}, err
	}

	r := models.Request{
		ID:             id,
		RequesterEmail: requester.Email,
		RequesterName:  requester.Name,
		RequesterPhone: requester.Phone,
		Status:         models.StatusPending,
		Offers:         []models.Offer{},
		FinishedBy:     []string{},
		Created:        now,
		Updated:        now,
	}
	d.apply(&r)
	return r, nil
}

// EditRequest replaces the substantive fields. Only pending requests are editable.
func EditRequest(r models.Request, d RequestDetails) (models.Request, error) {
	if r.Status != models.StatusPending {
		return r, fmt.Errorf("edit %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	if err := d.Validate(); err != nil {
		return r, err
	}
	out := r.Clone()
	d.apply(&out)
	return out, nil
}

// CanDelete reports whether the request may still be removed.
func CanDelete(r models.Request) error {
	if r.Status != models.StatusPending {
		return fmt.Errorf("delete %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	return nil
}

// ClosureResult is the outcome of one side of the mutual closure.
type ClosureResult struct {
	Request models.Request
	// Completed is true when this call was the second distinct closer.
	Completed bool
	// RatingPrompt is set when the requester completed the closure.
	RatingPrompt bool
}

// RequestClosure records actor as finished. Both the requester and the
// accepted provider must close before the request completes.
func RequestClosure(r models.Request, actorEmail string) (ClosureResult, error) {
	if !r.IsParticipant(actorEmail) {
		return ClosureResult{Request: r}, fmt.Errorf("%s closing request %d: %w", actorEmail, r.ID, ErrForbidden)
	}
	if r.HasFinished(actorEmail) {
		return ClosureResult{Request: r}, fmt.Errorf("%s already closed request %d: %w", actorEmail, r.ID, ErrAlreadyDone)
	}
	if r.Status != models.StatusConfirmed {
		return ClosureResult{Request: r}, fmt.Errorf("close %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}

	out := r.Clone()
	out.FinishedBy = append(out.FinishedBy, actorEmail)

	res := ClosureResult{Request: out}
	if out.HasFinished(out.RequesterEmail) && out.HasFinished(out.ProviderEmail()) {
		if err := transition(out.Status, models.StatusCompleted); err != nil {
			return ClosureResult{Request: r}, err
		}
		res.Request.Status = models.StatusCompleted
		res.Completed = true
		res.RatingPrompt = actorEmail == out.RequesterEmail
	}
	return res, nil
}

// CanRate checks that actor may rate the accepted provider of r.
func CanRate(r models.Request, actorEmail string) error {
	if actorEmail != r.RequesterEmail {
		return fmt.Errorf("%s rating request %d: %w", actorEmail, r.ID, ErrForbidden)
	}
	if r.Rated {
		return fmt.Errorf("request %d already rated: %w", r.ID, ErrAlreadyDone)
	}
	if r.Status != models.StatusCompleted {
		return fmt.Errorf("rate %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	if r.ProviderEmail() == "" {
		return fmt.Errorf("request %d has no accepted offer: %w", r.ID, ErrNotFound)
	}
	return nil
}
