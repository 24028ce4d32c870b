package repository

import (
	"context"
	"errors"

	"geo-attendance-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LocationRepository interface {
	FindActive(ctx context.Context, id uint) (*models.Location, error)
	GetByID(ctx context.Context, id uint) (*models.Location, error)
	List(ctx context.Context, includeInactive bool) ([]*models.Location, error)
	Create(ctx context.Context, location *models.Location) error
	Update(ctx context.Context, location *models.Location) error
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
	CountActive(ctx context.Context) (int64, error)
}

type GormLocationRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	logger := newLogger()
	logger.Info("Location repository initialized")

	return &GormLocationRepository{
		db:     db,
		logger: logger,
	}
}

// FindActive возвращает активную локацию или nil
func (r *GormLocationRepository) FindActive(ctx context.Context, id uint) (*models.Location, error) {
	var location models.Location
	result := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&location)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("location_id", id).Debug("Active location not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get active location")
		return nil, result.Error
	}

	return &location, nil
}

func (r *GormLocationRepository) GetByID(ctx context.Context, id uint) (*models.Location, error) {
	var location models.Location
	result := r.db.WithContext(ctx).First(&location, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get location by ID")
		return nil, result.Error
	}

	return &location, nil
}

func (r *GormLocationRepository) List(ctx context.Context, includeInactive bool) ([]*models.Location, error) {
	var locations []*models.Location

	query := r.db.WithContext(ctx)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Order("name ASC").Find(&locations).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list locations")
		return nil, err
	}

	return locations, nil
}

func (r *GormLocationRepository) Create(ctx context.Context, location *models.Location) error {
	r.logger.WithField("name", location.Name).Info("Creating location")

	if !location.IsValid() {
		r.logger.WithField("name", location.Name).Warn("Invalid location data")
		return errors.New("invalid location data")
	}

	// флаг активности задает вызывающий код, у колонки нет значения по умолчанию
	if err := r.db.WithContext(ctx).Create(location).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create location")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":   location.ID,
		"name": location.Name,
	}).Info("Location created successfully")

	return nil
}

func (r *GormLocationRepository) Update(ctx context.Context, location *models.Location) error {
	r.logger.WithField("id", location.ID).Info("Updating location")

	if !location.IsValid() {
		r.logger.WithField("id", location.ID).Warn("Invalid location data for update")
		return errors.New("invalid location data")
	}

	result := r.db.WithContext(ctx).Save(location)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update location")
		return result.Error
	}

	return nil
}

func (r *GormLocationRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("id = ?", id).
		Update("is_active", active)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to change location status")
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"id":        id,
		"is_active": active,
	}).Info("Location status changed")

	return nil
}

func (r *GormLocationRepository) Delete(ctx context.Context, id uint) error {
	r.logger.WithField("id", id).Info("Deleting location")

	result := r.db.WithContext(ctx).Delete(&models.Location{}, id)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to delete location")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Warn("Location not found for deletion")
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *GormLocationRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Location{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}
