package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nooratelier/boutique/internal/domain"
)

type SubscriberRepo struct{ db *gorm.DB }

func NewSubscriberRepo(db *gorm.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) Upsert(ctx context.Context, email string) (bool, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return false, errors.New("empty email")
	}
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Subscriber
		err := tx.First(&existing, "LOWER(email) = ?", e).Error
		if err == nil {
			if existing.Status != "subscribed" {
				return tx.Model(&existing).Update("status", "subscribed").Error
			}
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(&domain.Subscriber{ID: uuid.New(), Email: e, Status: "subscribed"}).Error
		}
		return err
	})
	return created, err
}

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return nil, errors.New("empty email")
	}
	if err := r.db.WithContext(ctx).First(&s, "LOWER(email) = ?", e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
