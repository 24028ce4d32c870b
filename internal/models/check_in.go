package models

import (
	"fmt"
	"time"

	"geo-attendance-bot/pkg/geofence"
)

type CheckIn struct {
	ID         uint `gorm:"primarykey" json:"id"`
	EmployeeID uint `gorm:"not null;index" json:"employee_id"`
	LocationID uint `gorm:"not null;index" json:"location_id"`

	// Время прихода/ухода
	CheckInTime  time.Time  `gorm:"not null;index" json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`

	// Координаты, с которых была сделана отметка
	CheckInLatitude   *float64 `json:"check_in_latitude"`
	CheckInLongitude  *float64 `json:"check_in_longitude"`
	CheckOutLatitude  *float64 `json:"check_out_latitude"`
	CheckOutLongitude *float64 `json:"check_out_longitude"`

	// Рассчитывается при закрытии
	DurationSeconds *int64 `json:"duration_seconds"`

	Status    string    `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Employee Employee `gorm:"foreignKey:EmployeeID" json:"employee"`
	Location Location `gorm:"foreignKey:LocationID" json:"location"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}

// Статусы отметок
const (
	StatusOpen   = "open"   // На смене
	StatusClosed = "closed" // Смена завершена
)

// IsOpen проверяет, открыта ли сессия
func (c *CheckIn) IsOpen() bool {
	return c.Status == StatusOpen && c.CheckOutTime == nil
}

// SetCheckInPoint сохраняет координаты прихода
func (c *CheckIn) SetCheckInPoint(p *geofence.Point) {
	if p == nil {
		return
	}
	lat, lon := p.Lat, p.Lon
	c.CheckInLatitude, c.CheckInLongitude = &lat, &lon
}

// SetCheckOutPoint сохраняет координаты ухода
func (c *CheckIn) SetCheckOutPoint(p *geofence.Point) {
	if p == nil {
		return
	}
	lat, lon := p.Lat, p.Lon
	c.CheckOutLatitude, c.CheckOutLongitude = &lat, &lon
}

// Duration возвращает продолжительность закрытой сессии
func (c *CheckIn) Duration() (time.Duration, bool) {
	if c.DurationSeconds == nil {
		return 0, false
	}
	return time.Duration(*c.DurationSeconds) * time.Second, true
}

// FormatDuration форматирует продолжительность как HH:MM:SS
func (c *CheckIn) FormatDuration() string {
	d, ok := c.Duration()
	if !ok {
		return "N/A"
	}
	return FormatClockDuration(d)
}

// FormatClockDuration форматирует интервал как HH:MM:SS
func FormatClockDuration(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatHours форматирует интервал как "7h 45m"
func FormatHours(d time.Duration) string {
	total := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// FormatTime форматирует время для отображения
func (c *CheckIn) FormatTime(loc *time.Location) string {
	in := c.CheckInTime.In(loc).Format("15:04")
	if c.CheckOutTime == nil {
		return fmt.Sprintf("⏰ In: %s", in)
	}
	return fmt.Sprintf("⏰ In: %s | Out: %s", in, c.CheckOutTime.In(loc).Format("15:04"))
}

// IsValid проверяет валидность данных
func (c *CheckIn) IsValid() bool {
	if c.EmployeeID == 0 || c.LocationID == 0 {
		return false
	}
	if c.CheckInTime.IsZero() {
		return false
	}
	if c.Status != StatusOpen && c.Status != StatusClosed {
		return false
	}
	return true
}
