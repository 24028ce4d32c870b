package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"geo-attendance-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrOpenCheckInExists - у сотрудника уже есть открытая отметка
	ErrOpenCheckInExists = errors.New("employee already has an open check-in")
	// ErrCheckInNotOpen - отметка уже закрыта или не существует
	ErrCheckInNotOpen = errors.New("check-in is not open")
)

type CheckInRepository interface {
	FindOpenForEmployee(ctx context.Context, employeeID uint) (*models.CheckIn, error)
	Create(ctx context.Context, checkIn *models.CheckIn) error
	Close(ctx context.Context, checkIn *models.CheckIn) error
	GetByID(ctx context.Context, id uint) (*models.CheckIn, error)

	ListByEmployee(ctx context.Context, employeeID uint, limit int) ([]*models.CheckIn, error)
	ListRecent(ctx context.Context, limit int) ([]*models.CheckIn, error)
	ListOpen(ctx context.Context) ([]*models.CheckIn, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.CheckIn, error)
	CountOpen(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	SumDurationSince(ctx context.Context, since time.Time) (time.Duration, error)
	CountByLocation(ctx context.Context, locationID uint) (int64, error)
}

type GormCheckInRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormCheckInRepository(db *gorm.DB) *GormCheckInRepository {
	logger := newLogger()
	logger.Info("Check-in repository initialized")

	return &GormCheckInRepository{
		db:     db,
		logger: logger,
	}
}

func (r *GormCheckInRepository) FindOpenForEmployee(ctx context.Context, employeeID uint) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	result := r.db.WithContext(ctx).
		Preload("Location").
		Where("employee_id = ? AND status = ?", employeeID, models.StatusOpen).
		First(&checkIn)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("employee_id", employeeID).Debug("No open check-in found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get open check-in")
		return nil, result.Error
	}

	return &checkIn, nil
}

// Create создает открытую отметку. Проверка и вставка идут в одной транзакции,
// а гонку между транзакциями закрывает уникальный индекс idx_check_ins_one_open.
func (r *GormCheckInRepository) Create(ctx context.Context, checkIn *models.CheckIn) error {
	fields := logrus.Fields{
		"employee_id": checkIn.EmployeeID,
		"location_id": checkIn.LocationID,
	}
	r.logger.WithFields(fields).Info("Creating check-in")

	if !checkIn.IsValid() || checkIn.Status != models.StatusOpen {
		r.logger.WithFields(fields).Warn("Invalid check-in data")
		return errors.New("invalid check-in data")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.CheckIn{}).
			Where("employee_id = ? AND status = ?", checkIn.EmployeeID, models.StatusOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrOpenCheckInExists
		}

		return insertOpen(tx, checkIn)
	})

	if errors.Is(err, ErrOpenCheckInExists) {
		r.logger.WithFields(fields).Warn("Employee already has an open check-in")
		return err
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to create check-in")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":          checkIn.ID,
		"employee_id": checkIn.EmployeeID,
		"status":      checkIn.Status,
	}).Info("Check-in created successfully")

	return nil
}

// Close закрывает отметку, только если она еще открыта.
// Время хранится в UTC, чтобы строки времени в SQLite сравнивались корректно.
func (r *GormCheckInRepository) Close(ctx context.Context, checkIn *models.CheckIn) error {
	r.logger.WithFields(logrus.Fields{
		"id":          checkIn.ID,
		"employee_id": checkIn.EmployeeID,
	}).Info("Closing check-in")

	if checkIn.CheckOutTime == nil || checkIn.DurationSeconds == nil {
		return errors.New("check-out time and duration are required")
	}

	result := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("id = ? AND status = ?", checkIn.ID, models.StatusOpen).
		Updates(map[string]interface{}{
			"check_out_time":      checkIn.CheckOutTime.UTC(),
			"check_out_latitude":  checkIn.CheckOutLatitude,
			"check_out_longitude": checkIn.CheckOutLongitude,
			"duration_seconds":    *checkIn.DurationSeconds,
			"status":              models.StatusClosed,
			"updated_at":          time.Now(),
		})

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to close check-in")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("id", checkIn.ID).Warn("Check-in already closed")
		return ErrCheckInNotOpen
	}

	checkIn.Status = models.StatusClosed

	r.logger.WithFields(logrus.Fields{
		"id":               checkIn.ID,
		"employee_id":      checkIn.EmployeeID,
		"duration_seconds": *checkIn.DurationSeconds,
	}).Info("Check-in closed successfully")

	return nil
}

func (r *GormCheckInRepository) GetByID(ctx context.Context, id uint) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	result := r.db.WithContext(ctx).Preload("Employee").Preload("Location").First(&checkIn, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("id", id).Debug("Check-in not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get check-in by ID")
		return nil, result.Error
	}

	return &checkIn, nil
}

func (r *GormCheckInRepository) ListByEmployee(ctx context.Context, employeeID uint, limit int) ([]*models.CheckIn, error) {
	var checkIns []*models.CheckIn

	query := r.db.WithContext(ctx).
		Preload("Location").
		Where("employee_id = ?", employeeID).
		Order("check_in_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&checkIns).Error; err != nil {
		r.logger.WithError(err).Error("Failed to get check-ins by employee")
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"count":       len(checkIns),
		"limit":       limit,
	}).Debug("Retrieved check-ins by employee")

	return checkIns, nil
}

func (r *GormCheckInRepository) ListRecent(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	var checkIns []*models.CheckIn

	query := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Location").
		Order("check_in_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&checkIns).Error; err != nil {
		r.logger.WithError(err).Error("Failed to get recent check-ins")
		return nil, err
	}

	return checkIns, nil
}

func (r *GormCheckInRepository) ListOpen(ctx context.Context) ([]*models.CheckIn, error) {
	var checkIns []*models.CheckIn

	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Location").
		Where("status = ?", models.StatusOpen).
		Order("location_id, check_in_time").
		Find(&checkIns).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to get open check-ins")
		return nil, err
	}

	return checkIns, nil
}

func (r *GormCheckInRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.CheckIn, error) {
	var checkIns []*models.CheckIn

	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Location").
		Where("check_in_time >= ? AND check_in_time < ?", from.UTC(), to.UTC()).
		Order("check_in_time DESC").
		Find(&checkIns).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to get check-ins for period")
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"count": len(checkIns),
	}).Debug("Retrieved check-ins for period")

	return checkIns, nil
}

func (r *GormCheckInRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("status = ?", models.StatusOpen).
		Count(&count).Error
	return count, err
}

func (r *GormCheckInRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("check_in_time >= ?", since.UTC()).
		Count(&count).Error
	return count, err
}

func (r *GormCheckInRepository) SumDurationSince(ctx context.Context, since time.Time) (time.Duration, error) {
	var data struct {
		Seconds int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Select("COALESCE(SUM(duration_seconds), 0) as seconds").
		Where("check_in_time >= ? AND status = ?", since.UTC(), models.StatusClosed).
		Scan(&data).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to sum check-in durations")
		return 0, err
	}

	return time.Duration(data.Seconds) * time.Second, nil
}

func (r *GormCheckInRepository) CountByLocation(ctx context.Context, locationID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("location_id = ?", locationID).
		Count(&count).Error
	return count, err
}

// isUniqueViolation распознает нарушение уникального индекса, если драйвер не перевел ошибку
// insertOpen вставляет открытую отметку. Если между транзакциями проскочила
// вторая открытая отметка, ее отклоняет индекс idx_check_ins_one_open.
func insertOpen(tx *gorm.DB, checkIn *models.CheckIn) error {
	checkIn.CheckInTime = checkIn.CheckInTime.UTC()
	err := tx.Omit(clause.Associations).Create(checkIn).Error
	if isUniqueViolation(err) {
		return ErrOpenCheckInExists
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
