package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"
	"geo-attendance-bot/pkg/geofence"

	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyCheckedIn = errors.New("employee already has an open session")
	ErrNoActiveSession  = errors.New("employee has no open session")
	ErrInvalidInterval  = errors.New("check-out time is before check-in time")
)

// AttendanceState - автомат состояний отметок сотрудника:
// NoActiveSession -> Active(session) -> NoActiveSession.
// Само состояние хранится в репозитории, AttendanceState между вызовами ничего не помнит.
type AttendanceState struct {
	checkIns repository.CheckInRepository
	logger   *logrus.Logger
}

func NewAttendanceState(checkIns repository.CheckInRepository) *AttendanceState {
	return &AttendanceState{
		checkIns: checkIns,
		logger:   newLogger(),
	}
}

// Current возвращает открытую сессию сотрудника или nil
func (s *AttendanceState) Current(ctx context.Context, employeeID uint) (*models.CheckIn, error) {
	session, err := s.checkIns.FindOpenForEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// BeginSession открывает сессию. Разрешено только из NoActiveSession,
// проверку выполняет репозиторий атомарно вместе с вставкой.
func (s *AttendanceState) BeginSession(ctx context.Context, employeeID, locationID uint, at time.Time, point *geofence.Point) (*models.CheckIn, error) {
	session := &models.CheckIn{
		EmployeeID:  employeeID,
		LocationID:  locationID,
		CheckInTime: at,
		Status:      models.StatusOpen,
	}
	session.SetCheckInPoint(point)

	err := s.checkIns.Create(ctx, session)
	if errors.Is(err, repository.ErrOpenCheckInExists) {
		s.logger.WithField("employee_id", employeeID).Warn("Session already open")
		return nil, ErrAlreadyCheckedIn
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":          session.ID,
		"employee_id": employeeID,
		"location_id": locationID,
	}).Info("Session opened")

	return session, nil
}

// EndSession закрывает открытую сессию и считает продолжительность
func (s *AttendanceState) EndSession(ctx context.Context, employeeID uint, at time.Time, point *geofence.Point) (*models.CheckIn, error) {
	session, err := s.Current(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}

	return s.close(ctx, session, at, point)
}

// close переводит уже найденную сессию в closed
func (s *AttendanceState) close(ctx context.Context, session *models.CheckIn, at time.Time, point *geofence.Point) (*models.CheckIn, error) {
	duration := at.Sub(session.CheckInTime)
	if duration < 0 {
		s.logger.WithFields(logrus.Fields{
			"id":             session.ID,
			"check_in_time":  session.CheckInTime.Format(time.RFC3339),
			"check_out_time": at.Format(time.RFC3339),
		}).Warn("Check-out before check-in")
		return nil, ErrInvalidInterval
	}

	seconds := int64(duration / time.Second)
	checkOut := at
	session.CheckOutTime = &checkOut
	session.DurationSeconds = &seconds
	session.SetCheckOutPoint(point)

	err := s.checkIns.Close(ctx, session)
	if errors.Is(err, repository.ErrCheckInNotOpen) {
		// сессию успели закрыть параллельным запросом
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":               session.ID,
		"employee_id":      session.EmployeeID,
		"duration_seconds": seconds,
	}).Info("Session closed")

	return session, nil
}
