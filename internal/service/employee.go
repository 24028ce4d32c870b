package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeExists   = errors.New("employee already exists")
	ErrForbidden        = errors.New("only administrators can do this")
)

type ProfileInput struct {
	FullName string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=254"`
	Phone    string `validate:"omitempty,max=15"`
	Title    string `validate:"omitempty,max=50"`
}

type EmployeeService struct {
	repo   repository.EmployeeRepository
	logger *logrus.Logger
}

func NewEmployeeService(repo repository.EmployeeRepository) *EmployeeService {
	return &EmployeeService{repo: repo, logger: newLogger()}
}

// CreateProfile создает сотрудника с ролью employee по умолчанию
func (s *EmployeeService) CreateProfile(ctx context.Context, chatID int64, username string, input ProfileInput) (*models.Employee, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	employee := &models.Employee{
		ChatID:   chatID,
		Email:    input.Email,
		FullName: input.FullName,
		Phone:    input.Phone,
		Title:    input.Title,
		Username: username,
	}
	employee.ApplyDefaults()

	err := s.repo.Create(ctx, employee)
	if errors.Is(err, repository.ErrEmployeeExists) {
		return nil, ErrEmployeeExists
	}
	if err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}

	return employee, nil
}

// GetByChatID возвращает сотрудника по chatID
func (s *EmployeeService) GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	employee, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if employee == nil {
		return nil, ErrEmployeeNotFound
	}
	return employee, nil
}

// IsAdmin проверяет, является ли пользователь администратором
func (s *EmployeeService) IsAdmin(ctx context.Context, chatID int64) (bool, error) {
	employee, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		return false, err
	}
	return employee != nil && employee.IsAdmin(), nil
}

// UpdateRole меняет роль сотрудника (только для админов)
func (s *EmployeeService) UpdateRole(ctx context.Context, adminChatID, targetChatID int64, role models.Role) error {
	isAdmin, err := s.IsAdmin(ctx, adminChatID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !isAdmin {
		return ErrForbidden
	}

	err = s.repo.UpdateRole(ctx, targetChatID, role)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEmployeeNotFound
	}
	return err
}

// List возвращает всех сотрудников
func (s *EmployeeService) List(ctx context.Context) ([]*models.Employee, error) {
	return s.repo.List(ctx)
}

// Count возвращает количество сотрудников и администраторов
func (s *EmployeeService) Count(ctx context.Context) (int64, int64, error) {
	return s.repo.Count(ctx)
}

// InitializeAdmin назначает администратора из конфига
func (s *EmployeeService) InitializeAdmin(ctx context.Context, adminChatID int64) error {
	if adminChatID == 0 {
		return nil // Админ не задан в конфиге
	}

	existing, err := s.repo.GetByChatID(ctx, adminChatID)
	if err != nil {
		return err
	}

	if existing != nil {
		return s.repo.UpdateRole(ctx, adminChatID, models.Role(models.RoleAdmin))
	}

	admin := &models.Employee{
		ChatID:   adminChatID,
		Email:    fmt.Sprintf("admin-%d@localhost", adminChatID),
		FullName: "Administrator",
		Role:     models.RoleAdmin,
	}
	admin.ApplyDefaults()

	return s.repo.Create(ctx, admin)
}

// FormatProfile форматирует профиль для вывода
func (s *EmployeeService) FormatProfile(e *models.Employee) string {
	var lines []string

	lines = append(lines, "👤 Profile:")
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("🆔 Employee ID: %s", e.EmployeeCode))
	lines = append(lines, fmt.Sprintf("👨‍💼 Name: %s", e.FullName))
	lines = append(lines, fmt.Sprintf("📧 Email: %s", e.Email))

	if e.Phone != "" {
		lines = append(lines, fmt.Sprintf("📞 Phone: %s", e.Phone))
	}
	if e.Title != "" {
		lines = append(lines, fmt.Sprintf("💼 Title: %s", e.Title))
	}

	roleEmoji := "👤"
	if e.IsAdmin() {
		roleEmoji = "👑"
	}
	lines = append(lines, fmt.Sprintf("%s Role: %s", roleEmoji, e.Role))

	return strings.Join(lines, "\n")
}
