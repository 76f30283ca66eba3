package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByPair(ctx context.Context, db *gorm.DB, appID, apiID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("application_id = ? AND api_id = ?", appID, apiID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) ListByApplication(ctx context.Context, db *gorm.DB, appID string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("api_id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Where("approved = ?", false).
		Order("created_at ASC, id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *repo) Approve(ctx context.Context, db *gorm.DB, id snowflake.ID, creds credential.Credentials, at time.Time) (bool, error) {
	tx := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ? AND approved = ?", id, false).
		Updates(map[string]any{
			"approved":      true,
			"api_key":       creds.APIKey,
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"updated_at":    at,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) SetTrusted(ctx context.Context, db *gorm.DB, id snowflake.ID, trusted bool, at time.Time) error {
	tx := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{"trusted": trusted, "updated_at": at})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	tx := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Subscription{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repo) InsertAPIIndex(ctx context.Context, db *gorm.DB, entry *domain.APIIndexEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListAPIIndex(ctx context.Context, db *gorm.DB, apiID string) ([]domain.APIIndexEntry, error) {
	var entries []domain.APIIndexEntry
	err := db.WithContext(ctx).
		Where("api_id = ?", apiID).
		Order("application_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repo) DeleteAPIIndex(ctx context.Context, db *gorm.DB, apiID, appID string) error {
	return db.WithContext(ctx).
		Where("api_id = ? AND application_id = ?", apiID, appID).
		Delete(&domain.APIIndexEntry{}).Error
}

func (r *repo) InsertClientIndex(ctx context.Context, db *gorm.DB, entry *domain.ClientIndexEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindClientIndex(ctx context.Context, db *gorm.DB, clientID string) (*domain.ClientIndexEntry, error) {
	var entry domain.ClientIndexEntry
	err := db.WithContext(ctx).Where("client_id = ?", clientID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) SetClientTrusted(ctx context.Context, db *gorm.DB, clientID string, trusted bool) error {
	return db.WithContext(ctx).
		Model(&domain.ClientIndexEntry{}).
		Where("client_id = ?", clientID).
		Update("trusted", trusted).Error
}

func (r *repo) DeleteClientIndex(ctx context.Context, db *gorm.DB, clientID string) error {
	return db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&domain.ClientIndexEntry{}).Error
}
