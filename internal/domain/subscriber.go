package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Subscriber struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:140;uniqueIndex"`
	Status    string    `gorm:"size:20;default:'subscribed'"`
	CreatedAt time.Time
}

type SubscriberRepo interface {
	// Upsert subscribes the email, reactivating it when already present.
	// Returns true when a new row was created.
	Upsert(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
}
