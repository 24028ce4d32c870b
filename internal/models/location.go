package models

import (
	"fmt"
	"time"

	"geo-attendance-bot/pkg/geofence"
	"geo-attendance-bot/pkg/shiftwindow"
)

// DefaultRadiusMeters - радиус зоны по умолчанию
const DefaultRadiusMeters = 100

type Location struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Address      string    `gorm:"type:text" json:"address"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	RadiusMeters int       `gorm:"not null;default:100" json:"radius_meters"`
	StartTime    string    `gorm:"type:varchar(8);not null" json:"start_time"` // HH:MM
	EndTime      string    `gorm:"type:varchar(8);not null" json:"end_time"`   // HH:MM
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Location) TableName() string {
	return "locations"
}

// HasCoordinate проверяет, заданы ли обе координаты
func (l *Location) HasCoordinate() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Fence возвращает геозону локации
func (l *Location) Fence() geofence.Fence {
	fence := geofence.Fence{RadiusMeters: l.RadiusMeters}
	if l.HasCoordinate() {
		fence.Center = &geofence.Point{Lat: *l.Latitude, Lon: *l.Longitude}
	}
	return fence
}

// ShiftStart разбирает время начала смены
func (l *Location) ShiftStart() (shiftwindow.Clock, error) {
	c, err := shiftwindow.ParseClock(l.StartTime)
	if err != nil {
		return shiftwindow.Clock{}, fmt.Errorf("location %d start time: %w", l.ID, err)
	}
	return c, nil
}

// ShiftEnd разбирает время окончания смены
func (l *Location) ShiftEnd() (shiftwindow.Clock, error) {
	c, err := shiftwindow.ParseClock(l.EndTime)
	if err != nil {
		return shiftwindow.Clock{}, fmt.Errorf("location %d end time: %w", l.ID, err)
	}
	return c, nil
}

// IsValid проверяет валидность данных
func (l *Location) IsValid() bool {
	if l.Name == "" {
		return false
	}
	if l.HasCoordinate() && l.RadiusMeters <= 0 {
		return false
	}
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return false
	}
	if l.HasCoordinate() && !(geofence.Point{Lat: *l.Latitude, Lon: *l.Longitude}).Valid() {
		return false
	}
	if _, err := l.ShiftStart(); err != nil {
		return false
	}
	if _, err := l.ShiftEnd(); err != nil {
		return false
	}
	return true
}

// FormatShift форматирует смену для отображения
func (l *Location) FormatShift() string {
	return fmt.Sprintf("%s - %s", l.StartTime, l.EndTime)
}
