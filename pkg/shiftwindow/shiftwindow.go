package shiftwindow

import (
	"fmt"
	"strings"
	"time"
)

// DefaultGraceMinutes - за сколько минут до начала смены разрешена отметка
const DefaultGraceMinutes = 15

const secondsPerDay = 24 * 60 * 60

// Clock - время суток без даты с точностью до секунды
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock разбирает "15:04" или "15:04:05"
func ParseClock(value string) (Clock, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return ClockOf(t), nil
		}
	}
	return Clock{}, fmt.Errorf("invalid time of day %q: expected HH:MM", value)
}

// ClockOf отбрасывает дату
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Seconds возвращает количество секунд от полуночи
func (c Clock) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// String печатает HH:MM, секунды только если они заданы
func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func fromSeconds(s int) Clock {
	s = ((s % secondsPerDay) + secondsPerDay) % secondsPerDay
	return Clock{Hour: s / 3600, Minute: s / 60 % 60, Second: s % 60}
}

// AllowedFrom возвращает время открытия окна отметки.
// Для смены в 00:05 и 15 минут это 23:50 предыдущего дня.
func AllowedFrom(shiftStart Clock, graceMinutes int) Clock {
	return fromSeconds(shiftStart.Seconds() - graceMinutes*60)
}

// CanCheckIn проверяет, открыто ли окно отметки.
// Окно открывается за graceMinutes до начала смены и не закрывается до конца суток смены.
func CanCheckIn(now, shiftStart Clock, graceMinutes int) bool {
	// opensAt отрицательно, если окно открылось накануне вечером:
	// тогда и [opensAt, 24:00) вчера, и всё после 00:00 сегодня уже внутри окна
	opensAt := shiftStart.Seconds() - graceMinutes*60
	return now.Seconds() >= opensAt
}
