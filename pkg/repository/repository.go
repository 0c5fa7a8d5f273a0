package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/servicehub/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return (nil, nil) when the record does not exist.

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, role models.Role, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type RequestRepo interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	ListRequests(ctx context.Context) ([]models.Request, error)
	// SaveRequest replaces the stored request, offers included.
	SaveRequest(ctx context.Context, r *models.Request) error
	// SaveRatedRequest stores the rated request and the progressed provider together.
	SaveRatedRequest(ctx context.Context, r *models.Request, provider *models.User) error
	DeleteRequest(ctx context.Context, id int64) error
	MaxRequestID(ctx context.Context) (int64, error)
}

type NotificationRepo interface {
	ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error)
	// ReplaceNotifications swaps the recipient's whole feed.
	ReplaceNotifications(ctx context.Context, recipient string, feed []models.Notification) error
}

type ActivityRepo interface {
	CreateActivity(ctx context.Context, a *models.Activity) (int64, error)
	ListByRequest(ctx context.Context, requestID int64, limit, offset int) ([]models.Activity, error)
}

// Store bundles every repository a single backend provides.
type Store interface {
	UserRepo
	RequestRepo
	NotificationRepo
	ActivityRepo
}
