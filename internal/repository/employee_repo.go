package repository

import (
	"context"
	"errors"

	"geo-attendance-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrEmployeeExists - сотрудник с таким чатом или email уже есть
var ErrEmployeeExists = errors.New("employee already exists")

type EmployeeRepository interface {
	Create(ctx context.Context, employee *models.Employee) error
	GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error)
	GetByID(ctx context.Context, id uint) (*models.Employee, error)
	Update(ctx context.Context, employee *models.Employee) error
	UpdateRole(ctx context.Context, chatID int64, role models.Role) error
	List(ctx context.Context) ([]*models.Employee, error)
	Count(ctx context.Context) (total int64, admins int64, err error)
}

type GormEmployeeRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormEmployeeRepository(db *gorm.DB) *GormEmployeeRepository {
	logger := newLogger()
	logger.Info("Employee repository initialized")

	return &GormEmployeeRepository{db: db, logger: logger}
}

func (r *GormEmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	// Проверяем, существует ли уже сотрудник
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("chat_id = ? OR email = ?", employee.ChatID, employee.Email).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrEmployeeExists
	}

	err = r.db.WithContext(ctx).Create(employee).Error
	if isUniqueViolation(err) {
		return ErrEmployeeExists
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to create employee")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":            employee.ID,
		"chat_id":       employee.ChatID,
		"employee_code": employee.EmployeeCode,
	}).Info("Employee created")

	return nil
}

func (r *GormEmployeeRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	var employee models.Employee
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&employee)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &employee, nil
}

func (r *GormEmployeeRepository) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var employee models.Employee
	result := r.db.WithContext(ctx).First(&employee, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &employee, nil
}

func (r *GormEmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	result := r.db.WithContext(ctx).Save(employee)
	if isUniqueViolation(result.Error) {
		return ErrEmployeeExists
	}
	return result.Error
}

func (r *GormEmployeeRepository) UpdateRole(ctx context.Context, chatID int64, role models.Role) error {
	result := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("chat_id = ?", chatID).
		Update("role", string(role))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"role":    role,
	}).Info("Employee role updated")

	return nil
}

func (r *GormEmployeeRepository) List(ctx context.Context) ([]*models.Employee, error) {
	var employees []*models.Employee
	result := r.db.WithContext(ctx).Order("full_name ASC").Find(&employees)

	if result.Error != nil {
		return nil, result.Error
	}

	return employees, nil
}

func (r *GormEmployeeRepository) Count(ctx context.Context) (int64, int64, error) {
	var total int64
	var admins int64

	// Получаем общее количество сотрудников
	result := r.db.WithContext(ctx).Model(&models.Employee{}).Count(&total)
	if result.Error != nil {
		return 0, 0, result.Error
	}

	// Получаем количество администраторов
	result = r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("role = ?", models.RoleAdmin).
		Count(&admins)
	if result.Error != nil {
		return 0, 0, result.Error
	}

	return total, admins, nil
}
