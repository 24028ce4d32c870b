package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"
	"geo-attendance-bot/pkg/geofence"
	"geo-attendance-bot/pkg/shiftwindow"

	"github.com/sirupsen/logrus"
)

// ReasonCode - причина отказа в отметке
type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonAlreadyCheckedIn    ReasonCode = "ALREADY_CHECKED_IN"
	ReasonLocationUnavailable ReasonCode = "LOCATION_UNAVAILABLE"
	ReasonOutsideShiftWindow  ReasonCode = "OUTSIDE_SHIFT_WINDOW"
	ReasonOutOfRange          ReasonCode = "OUT_OF_RANGE"
	ReasonNotCheckedIn        ReasonCode = "NOT_CHECKED_IN"
	ReasonInvalidInterval     ReasonCode = "INVALID_INTERVAL"
)

type CheckInRequest struct {
	EmployeeID uint
	LocationID string // как прислал клиент, разбирается здесь
	Point      *geofence.Point
	Now        time.Time // локальное время
}

type CheckOutRequest struct {
	EmployeeID uint
	Point      *geofence.Point
	Now        time.Time
}

type CheckInResult struct {
	Accepted bool
	Reason   ReasonCode
	Message  string
	Session  *models.CheckIn
}

type CheckOutResult struct {
	Accepted        bool
	Reason          ReasonCode
	Message         string
	Session         *models.CheckIn
	DurationSeconds *int64
}

// CheckInEngine решает, принять ли отметку прихода или ухода.
// Бизнес-отказы возвращаются как результат, ошибка - только при сбое хранилища.
type CheckInEngine struct {
	locations    repository.LocationRepository
	state        *AttendanceState
	graceMinutes int
	logger       *logrus.Logger
}

func NewCheckInEngine(locations repository.LocationRepository, state *AttendanceState, graceMinutes int) *CheckInEngine {
	return &CheckInEngine{
		locations:    locations,
		state:        state,
		graceMinutes: graceMinutes,
		logger:       newLogger(),
	}
}

// GraceMinutes возвращает длину окна до начала смены
func (e *CheckInEngine) GraceMinutes() int {
	return e.graceMinutes
}

// Current возвращает открытую сессию сотрудника или nil
func (e *CheckInEngine) Current(ctx context.Context, employeeID uint) (*models.CheckIn, error) {
	return e.state.Current(ctx, employeeID)
}

// CheckIn проверяет правила по порядку и открывает сессию
func (e *CheckInEngine) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	fields := logrus.Fields{
		"employee_id": req.EmployeeID,
		"location_id": req.LocationID,
		"now":         req.Now.Format("15:04"),
	}
	e.logger.WithFields(fields).Info("Employee checking in")

	// 1. Уже есть открытая сессия
	open, err := e.state.Current(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return rejectCheckIn(ReasonAlreadyCheckedIn,
			"You are already checked in at another location. Please check out first."), nil
	}

	// 2. Локация неизвестна или выключена
	location, err := e.findActiveLocation(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return rejectCheckIn(ReasonLocationUnavailable, "This location is not available for check-in."), nil
	}

	// 3. Окно до начала смены
	shiftStart, err := location.ShiftStart()
	if err != nil {
		return nil, fmt.Errorf("stored location is malformed: %w", err)
	}
	if !shiftwindow.CanCheckIn(shiftwindow.ClockOf(req.Now), shiftStart, e.graceMinutes) {
		return rejectCheckIn(ReasonOutsideShiftWindow, fmt.Sprintf(
			"You can only check in %d minutes before your shift starts at %s",
			e.graceMinutes, shiftStart)), nil
	}

	// 4. Геозона
	if !inFence(req.Point, location) {
		return rejectCheckIn(ReasonOutOfRange, fmt.Sprintf(
			"You are not within range of this location. Please move closer to %s", location.Name)), nil
	}

	session, err := e.state.BeginSession(ctx, req.EmployeeID, location.ID, req.Now, req.Point)
	if errors.Is(err, ErrAlreadyCheckedIn) {
		// проиграли гонку параллельной отметке
		return rejectCheckIn(ReasonAlreadyCheckedIn,
			"You are already checked in at another location. Please check out first."), nil
	}
	if err != nil {
		return nil, err
	}
	session.Location = *location

	e.logger.WithFields(fields).WithField("session_id", session.ID).Info("Employee checked in successfully")

	return &CheckInResult{
		Accepted: true,
		Message:  fmt.Sprintf("Successfully checked in at %s", location.Name),
		Session:  session,
	}, nil
}

// CheckOut проверяет правила ухода и закрывает сессию
func (e *CheckInEngine) CheckOut(ctx context.Context, req CheckOutRequest) (*CheckOutResult, error) {
	e.logger.WithFields(logrus.Fields{
		"employee_id": req.EmployeeID,
		"now":         req.Now.Format("15:04"),
	}).Info("Employee checking out")

	// 1. Нет открытой сессии
	session, err := e.state.Current(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return rejectCheckOut(ReasonNotCheckedIn, "You are not currently checked in anywhere"), nil
	}

	// 2. Геозона локации, где открыта сессия
	location := &session.Location
	if !inFence(req.Point, location) {
		return rejectCheckOut(ReasonOutOfRange, fmt.Sprintf(
			"You are not within range of this location. Please move closer to %s to check out", location.Name)), nil
	}

	closed, err := e.state.close(ctx, session, req.Now, req.Point)
	switch {
	case errors.Is(err, ErrNoActiveSession):
		return rejectCheckOut(ReasonNotCheckedIn, "You are not currently checked in anywhere"), nil
	case errors.Is(err, ErrInvalidInterval):
		return rejectCheckOut(ReasonInvalidInterval, "Check-out time cannot be earlier than check-in time"), nil
	case err != nil:
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"employee_id":      req.EmployeeID,
		"session_id":       closed.ID,
		"duration_seconds": *closed.DurationSeconds,
	}).Info("Employee checked out successfully")

	return &CheckOutResult{
		Accepted:        true,
		Message:         fmt.Sprintf("Successfully checked out from %s", location.Name),
		Session:         closed,
		DurationSeconds: closed.DurationSeconds,
	}, nil
}

// findActiveLocation разбирает id от клиента; нечитаемый id равен отсутствующей локации
func (e *CheckInEngine) findActiveLocation(ctx context.Context, rawID string) (*models.Location, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		e.logger.WithField("location_id", rawID).Debug("Unparsable location id")
		return nil, nil
	}

	location, err := e.locations.FindActive(ctx, uint(id))
	if err != nil {
		return nil, fmt.Errorf("find active location: %w", err)
	}
	return location, nil
}

func inFence(point *geofence.Point, location *models.Location) bool {
	if point == nil || !point.Valid() {
		return false
	}
	return geofence.WithinRange(point.Lat, point.Lon, location.Fence())
}

func rejectCheckIn(reason ReasonCode, message string) *CheckInResult {
	return &CheckInResult{Accepted: false, Reason: reason, Message: message}
}

func rejectCheckOut(reason ReasonCode, message string) *CheckOutResult {
	return &CheckOutResult{Accepted: false, Reason: reason, Message: message}
}
