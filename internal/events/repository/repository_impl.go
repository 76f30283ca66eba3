package repository

import (
	"context"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertListener(ctx context.Context, db *gorm.DB, listener *domain.Listener) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "updated_at"}),
		}).
		Create(listener).Error
}

func (r *repo) DeleteListener(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Listener{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrListenerNotFound
	}
	return nil
}

func (r *repo) ListListeners(ctx context.Context, db *gorm.DB) ([]domain.Listener, error) {
	var listeners []domain.Listener
	err := db.WithContext(ctx).Order("id ASC").Find(&listeners).Error
	return listeners, err
}

func (r *repo) ListenerIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Listener{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *repo) InsertEvents(ctx context.Context, db *gorm.DB, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&events).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, listenerID string, limit int) ([]domain.Event, error) {
	var events []domain.Event
	stmt := db.WithContext(ctx).Where("listener_id = ?", listenerID).Order("id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&events).Error
	return events, err
}

func (r *repo) DeleteEvent(ctx context.Context, db *gorm.DB, listenerID, eventID string) error {
	tx := db.WithContext(ctx).
		Where("listener_id = ? AND id = ?", listenerID, eventID).
		Delete(&domain.Event{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *repo) DeleteEvents(ctx context.Context, db *gorm.DB, listenerID string) error {
	return db.WithContext(ctx).Where("listener_id = ?", listenerID).Delete(&domain.Event{}).Error
}
