package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/garnizeh/servicehub/pkg/models"
)

// ActiveOffer returns the provider's non-declined offer on r.
func ActiveOffer(r models.Request, providerEmail string) (models.Offer, bool) {
	for _, o := range r.Offers {
		if o.ProviderEmail == providerEmail && o.Active() {
			return o, true
		}
	}
	return models.Offer{}, false
}

// ValidatePrice rejects negative, NaN and infinite amounts.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("price %v: %w", price, ErrValidation)
	}
	return nil
}

// SubmitOffer appends o as a pending offer. A provider may hold one active
// offer per request.
func SubmitOffer(r models.Request, o models.Offer) (models.Request, error) {
	if r.Status != models.StatusPending {
		return r, fmt.Errorf("offer on %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	if strings.TrimSpace(o.ProviderEmail) == "" {
		return r, fmt.Errorf("offer without provider: %w", ErrValidation)
	}
	if err := ValidatePrice(o.Price); err != nil {
		return r, err
	}
	if _, ok := ActiveOffer(r, o.ProviderEmail); ok {
		return r, fmt.Errorf("provider %s already has an active offer on request %d: %w", o.ProviderEmail, r.ID, ErrInvalidState)
	}

	out := r.Clone()
	o.Status = models.OfferPending
	out.Offers = append(out.Offers, o)
	return out, nil
}

// AcceptOffer accepts the provider's offer, declines every other one and
// confirms the request. The result is built on a copy and returned whole.
func AcceptOffer(r models.Request, providerEmail string) (models.Request, error) {
	if r.Status != models.StatusPending {
		return r, fmt.Errorf("accept on %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	if _, ok := ActiveOffer(r, providerEmail); !ok {
		return r, fmt.Errorf("offer from %s on request %d: %w", providerEmail, r.ID, ErrNotFound)
	}
	if err := transition(r.Status, models.StatusConfirmed); err != nil {
		return r, err
	}

	out := r.Clone()
	accepted := false
	for i := range out.Offers {
		if !accepted && out.Offers[i].ProviderEmail == providerEmail && out.Offers[i].Active() {
			out.Offers[i].Status = models.OfferAccepted
			accepted = true
			continue
		}
		out.Offers[i].Status = models.OfferDeclined
	}
	out.Status = models.StatusConfirmed
	return out, nil
}

// DeclineOffer removes the provider's active offer from the ledger. The
// provider may submit again afterwards.
func DeclineOffer(r models.Request, providerEmail string) (models.Request, error) {
	if r.Status != models.StatusPending {
		return r, fmt.Errorf("decline on %s request %d: %w", r.Status, r.ID, ErrInvalidState)
	}
	if _, ok := ActiveOffer(r, providerEmail); !ok {
		return r, fmt.Errorf("offer from %s on request %d: %w", providerEmail, r.ID, ErrNotFound)
	}

	out := r.Clone()
	kept := out.Offers[:0]
	for _, o := range out.Offers {
		if o.ProviderEmail == providerEmail {
			continue
		}
		kept = append(kept, o)
	}
	out.Offers = kept
	return out, nil
}
