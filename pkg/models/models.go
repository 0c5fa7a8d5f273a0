package models

import (
	"fmt"
	"slices"
	"strings"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleRequester || r == RoleProvider
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusConfirmed RequestStatus = "confirmed"
	StatusCompleted RequestStatus = "completed"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
)

type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyNormal    Urgency = "normal"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

type NotificationKind string

const (
	KindMessage NotificationKind = "message"
	KindOffer   NotificationKind = "offer"
	KindStatus  NotificationKind = "status"
)

// DefaultContactPref is assigned to every new profile.
const DefaultContactPref = "whatsapp"

type Address struct {
	Street       string `json:"street" db:"address_street"`
	Number       string `json:"number" db:"address_number"`
	Complement   string `json:"complement,omitempty" db:"address_complement"`
	Neighborhood string `json:"neighborhood" db:"address_neighborhood"`
	City         string `json:"city" db:"address_city"`
	State        string `json:"state" db:"address_state"`
}

// String renders the one-line form, e.g. "Rua A, 10 - apto 2 - Centro, Recife - PE".
func (a Address) String() string {
	if a == (Address{}) {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s", a.Street, a.Number)
	if a.Complement != "" {
		fmt.Fprintf(&b, " - %s", a.Complement)
	}
	fmt.Fprintf(&b, " - %s, %s - %s", a.Neighborhood, a.City, a.State)
	return b.String()
}

// User is a requester or provider profile. Level, XP, Ratings and
// Achievements are only meaningful for providers.
type User struct {
	Role         Role     `json:"role" db:"role"`
	Email        string   `json:"email" db:"email" validate:"required,email"`
	Name         string   `json:"name" db:"name" validate:"required"`
	Phone        string   `json:"phone" db:"phone"`
	PasswordHash string   `json:"-" db:"password_hash"`
	Address      Address  `json:"address"`
	ContactPref  string   `json:"contact_pref" db:"contact_pref"`
	Skills       string   `json:"skills,omitempty" db:"skills"`
	Area         string   `json:"area,omitempty" db:"area"`
	Level        int      `json:"level" db:"level"`
	XP           int      `json:"xp" db:"xp"`
	Ratings      []int    `json:"ratings" db:"ratings"`
	Achievements []string `json:"achievements" db:"achievements"`
	Created      int64    `json:"created" db:"created"`
	Updated      int64    `json:"updated" db:"updated"`
}

// NewUser returns a profile with every progression field defaulted.
func NewUser(role Role, email, name string) User {
	return User{
		Role:         role,
		Email:        email,
		Name:         name,
		ContactPref:  DefaultContactPref,
		Level:        1,
		Ratings:      []int{},
		Achievements: []string{},
	}
}

// Key is the role-qualified identity of the profile.
func (u User) Key() string {
	return UserKey(u.Role, u.Email)
}

func UserKey(role Role, email string) string {
	return string(role) + ":" + email
}

func (u User) IsProvider() bool { return u.Role == RoleProvider }

// AverageRating reports the mean rating and false when there are no ratings.
func (u User) AverageRating() (float64, bool) {
	if len(u.Ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range u.Ratings {
		sum += r
	}
	return float64(sum) / float64(len(u.Ratings)), true
}

func (u User) HasAchievement(id string) bool {
	return slices.Contains(u.Achievements, id)
}

// Clone returns a deep copy so callers can mutate slices freely.
func (u User) Clone() User {
	c := u
	c.Ratings = append([]int{}, u.Ratings...)
	c.Achievements = append([]string{}, u.Achievements...)
	return c
}

type Offer struct {
	ID            string      `json:"id" db:"id"`
	ProviderEmail string      `json:"provider_email" db:"provider_email"`
	ProviderName  string      `json:"provider_name" db:"provider_name"`
	Price         float64     `json:"price" db:"price"`
	Message       string      `json:"message" db:"message"`
	Status        OfferStatus `json:"status" db:"status"`
	Created       int64       `json:"created" db:"created"`
}

// Active reports whether the offer still counts toward the one-per-provider rule.
func (o Offer) Active() bool { return o.Status != OfferDeclined }

type Request struct {
	ID             int64         `json:"id" db:"id"`
	Title          string        `json:"title" db:"title"`
	Description    string        `json:"description" db:"description"`
	Location       string        `json:"location" db:"location"`
	Budget         float64       `json:"budget" db:"budget"`
	PaymentMethod  string        `json:"payment_method" db:"payment_method"`
	Urgency        Urgency       `json:"urgency" db:"urgency"`
	RequesterEmail string        `json:"requester_email" db:"requester_email"`
	RequesterName  string        `json:"requester_name" db:"requester_name"`
	RequesterPhone string        `json:"requester_phone" db:"requester_phone"`
	Status         RequestStatus `json:"status" db:"status"`
	Offers         []Offer       `json:"offers"`
	FinishedBy     []string      `json:"finished_by" db:"finished_by"`
	Rated          bool          `json:"rated" db:"rated"`
	Created        int64         `json:"created" db:"created"`
	Updated        int64         `json:"updated" db:"updated"`
}

// Clone returns a deep copy of the request including its offers.
func (r Request) Clone() Request {
	c := r
	c.Offers = append([]Offer{}, r.Offers...)
	c.FinishedBy = append([]string{}, r.FinishedBy...)
	return c
}

// AcceptedOffer returns the winning offer once the request is confirmed.
func (r Request) AcceptedOffer() (Offer, bool) {
	for _, o := range r.Offers {
		if o.Status == OfferAccepted {
			return o, true
		}
	}
	return Offer{}, false
}

// ProviderEmail is the email of the accepted provider, or "" before acceptance.
func (r Request) ProviderEmail() string {
	o, _ := r.AcceptedOffer()
	return o.ProviderEmail
}

// IsParticipant reports whether email is the requester or the accepted provider.
func (r Request) IsParticipant(email string) bool {
	if email == "" {
		return false
	}
	return email == r.RequesterEmail || email == r.ProviderEmail()
}

// Counterparty returns the other participant of a confirmed request.
func (r Request) Counterparty(email string) string {
	if email == r.RequesterEmail {
		return r.ProviderEmail()
	}
	return r.RequesterEmail
}

func (r Request) HasFinished(email string) bool {
	return slices.Contains(r.FinishedBy, email)
}

type Notification struct {
	ID             string           `json:"id" db:"id"`
	Kind           NotificationKind `json:"kind" db:"kind"`
	Title          string           `json:"title" db:"title"`
	Body           string           `json:"body" db:"body"`
	RequestID      int64            `json:"request_id" db:"request_id"`
	RecipientEmail string           `json:"recipient_email" db:"recipient_email"`
	Read           bool             `json:"read" db:"read"`
	Created        int64            `json:"created" db:"created"`
}

// Activity is one entry of a request's audit trail.
type Activity struct {
	ID         int64  `json:"id" db:"id"`
	RequestID  int64  `json:"request_id" db:"request_id"`
	ActorEmail string `json:"actor_email" db:"actor_email"`
	ActorRole  Role   `json:"actor_role" db:"actor_role"`
	Action     string `json:"action" db:"action"`
	Detail     string `json:"detail,omitempty" db:"detail"`
	Created    int64  `json:"created" db:"created"`
}
