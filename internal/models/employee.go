package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleEmployee string = "employee"
	RoleAdmin    string = "admin"
)

type Employee struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	ChatID       int64     `gorm:"uniqueIndex;not null" json:"chat_id"`
	Email        string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	EmployeeCode string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"employee_code"`
	FullName     string    `gorm:"type:varchar(100);not null" json:"full_name"`
	Phone        string    `gorm:"type:varchar(15)" json:"phone"`
	Title        string    `gorm:"type:varchar(50)" json:"title"`
	Username     string    `json:"username"`
	Role         string    `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsAdmin проверяет, является ли сотрудник администратором
func (e *Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// SetRole устанавливает роль
func (e *Employee) SetRole(role Role) {
	e.Role = string(role)
}

// ApplyDefaults выдает табельный номер и роль, если они не заданы
func (e *Employee) ApplyDefaults() {
	if e.EmployeeCode == "" {
		e.EmployeeCode = NewEmployeeCode()
	}
	if e.Role == "" {
		e.Role = RoleEmployee
	}
}

// NewEmployeeCode генерирует номер вида EMP1A2B3C
func NewEmployeeCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "EMP" + strings.ToUpper(hex[:6])
}

func (Employee) TableName() string {
	return "employees"
}
