package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return db.WithContext(ctx).Create(app).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var app domain.Application
	err := db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *repo) Touch(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	tx := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", id).
		Update("updated_at", at)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Application, error) {
	stmt := db.WithContext(ctx).Model(&domain.Application{})
	if filter.OwnerID != nil {
		stmt = stmt.Where(
			"id IN (?)",
			db.Model(&domain.Owner{}).Select("application_id").Where("user_id = ?", *filter.OwnerID),
		)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var apps []domain.Application
	if err := stmt.Order("id ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	tx := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"name":         app.Name,
			"description":  app.Description,
			"redirect_uri": app.RedirectURI,
			"confidential": app.Confidential,
			"updated_at":   app.UpdatedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Application{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

func (r *repo) InsertOwner(ctx context.Context, db *gorm.DB, owner *domain.Owner) error {
	return db.WithContext(ctx).Create(owner).Error
}

func (r *repo) FindOwner(ctx context.Context, db *gorm.DB, appID string, userID snowflake.ID) (*domain.Owner, error) {
	var owners []domain.Owner
	err := db.WithContext(ctx).
		Where("application_id = ? AND user_id = ?", appID, userID).
		Limit(1).
		Find(&owners).Error
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, nil
	}
	return &owners[0], nil
}

func (r *repo) ListOwners(ctx context.Context, db *gorm.DB, appID string) ([]domain.Owner, error) {
	var owners []domain.Owner
	err := db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("created_at ASC").
		Find(&owners).Error
	return owners, err
}

func (r *repo) DeleteOwner(ctx context.Context, db *gorm.DB, appID string, userID snowflake.ID) error {
	tx := db.WithContext(ctx).
		Where("application_id = ? AND user_id = ?", appID, userID).
		Delete(&domain.Owner{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrOwnerNotFound
	}
	return nil
}

func (r *repo) DeleteOwners(ctx context.Context, db *gorm.DB, appID string) error {
	return db.WithContext(ctx).Where("application_id = ?", appID).Delete(&domain.Owner{}).Error
}
