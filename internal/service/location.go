package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"
	"geo-attendance-bot/pkg/locationfile"
	"geo-attendance-bot/pkg/shiftwindow"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrLocationInUse    = errors.New("cannot delete location with existing check-in records")
)

// LocationInput - данные локации от администратора
type LocationInput struct {
	Name         string   `validate:"required,max=100"`
	Address      string   `validate:"max=500"`
	Latitude     *float64 `validate:"required_with=Longitude,omitempty,latitude"`
	Longitude    *float64 `validate:"required_with=Latitude,omitempty,longitude"`
	RadiusMeters int      `validate:"gte=1,lte=100000"`
	StartTime    string   `validate:"required,datetime=15:04"`
	EndTime      string   `validate:"required,datetime=15:04"`
}

// ParseLocationInput разбирает "Name; Address; lat; lon; radius; 09:00; 18:00".
// Вместо координат можно указать "-", пустой радиус означает значение по умолчанию.
func ParseLocationInput(args string) (LocationInput, error) {
	parts := strings.Split(args, ";")
	if len(parts) != 7 {
		return LocationInput{}, &ValidationError{Fields: []string{"expected 7 fields separated by ';'"}}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	input := LocationInput{
		Name:         parts[0],
		Address:      parts[1],
		RadiusMeters: models.DefaultRadiusMeters,
		StartTime:    parts[5],
		EndTime:      parts[6],
	}

	var err error
	if input.Latitude, err = parseOptionalFloat(parts[2]); err != nil {
		return LocationInput{}, &ValidationError{Fields: []string{"Latitude (number)"}}
	}
	if input.Longitude, err = parseOptionalFloat(parts[3]); err != nil {
		return LocationInput{}, &ValidationError{Fields: []string{"Longitude (number)"}}
	}
	if parts[4] != "" && parts[4] != "-" {
		if input.RadiusMeters, err = strconv.Atoi(parts[4]); err != nil {
			return LocationInput{}, &ValidationError{Fields: []string{"RadiusMeters (integer)"}}
		}
	}

	return input, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" || s == "-" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type LocationService struct {
	locations repository.LocationRepository
	checkIns  repository.CheckInRepository
	logger    *logrus.Logger
}

func NewLocationService(locations repository.LocationRepository, checkIns repository.CheckInRepository) *LocationService {
	return &LocationService{
		locations: locations,
		checkIns:  checkIns,
		logger:    newLogger(),
	}
}

// Create добавляет активную локацию
func (s *LocationService) Create(ctx context.Context, input LocationInput) (*models.Location, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	location := &models.Location{IsActive: true}
	if err := applyLocationInput(location, input); err != nil {
		return nil, err
	}

	if err := s.locations.Create(ctx, location); err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":   location.ID,
		"name": location.Name,
	}).Info("Location added")

	return location, nil
}

// Update перезаписывает поля локации, флаг активности не меняется
func (s *LocationService) Update(ctx context.Context, id uint, input LocationInput) (*models.Location, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	location, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	if location == nil {
		return nil, ErrLocationNotFound
	}

	if err := applyLocationInput(location, input); err != nil {
		return nil, err
	}

	if err := s.locations.Update(ctx, location); err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}

	return location, nil
}

// SetActive включает или выключает локацию
func (s *LocationService) SetActive(ctx context.Context, id uint, active bool) error {
	err := s.locations.SetActive(ctx, id, active)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLocationNotFound
	}
	return err
}

// Toggle переключает активность и возвращает новое состояние
func (s *LocationService) Toggle(ctx context.Context, id uint) (*models.Location, error) {
	location, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	if location == nil {
		return nil, ErrLocationNotFound
	}

	if err := s.SetActive(ctx, id, !location.IsActive); err != nil {
		return nil, err
	}
	location.IsActive = !location.IsActive

	return location, nil
}

// Delete удаляет локацию, если на нее нет отметок
func (s *LocationService) Delete(ctx context.Context, id uint) error {
	refs, err := s.checkIns.CountByLocation(ctx, id)
	if err != nil {
		return fmt.Errorf("count check-ins: %w", err)
	}
	if refs > 0 {
		s.logger.WithFields(logrus.Fields{
			"id":         id,
			"references": refs,
		}).Warn("Refusing to delete referenced location")
		return ErrLocationInUse
	}

	err = s.locations.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLocationNotFound
	}
	return err
}

// LoadFromJSON добавляет локации из файла, пропуская уже существующие по имени
func (s *LocationService) LoadFromJSON(ctx context.Context, filePath string) (int, error) {
	entries, err := locationfile.ParseLocationsJSON(filePath)
	if err != nil {
		return 0, err
	}

	existing, err := s.locations.List(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list locations: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, l := range existing {
		names[strings.ToLower(l.Name)] = true
	}

	created := 0
	for _, entry := range entries {
		if names[strings.ToLower(entry.Name)] {
			continue
		}

		input := LocationInput{
			Name:         entry.Name,
			Address:      entry.Address,
			Latitude:     entry.Latitude,
			Longitude:    entry.Longitude,
			RadiusMeters: entry.RadiusMeters,
			StartTime:    entry.StartTime,
			EndTime:      entry.EndTime,
		}
		if input.RadiusMeters == 0 {
			input.RadiusMeters = models.DefaultRadiusMeters
		}

		if _, err := s.Create(ctx, input); err != nil {
			return created, fmt.Errorf("location %q: %w", entry.Name, err)
		}
		created++
	}

	s.logger.WithFields(logrus.Fields{
		"file":    filePath,
		"created": created,
		"skipped": len(entries) - created,
	}).Info("Locations loaded from file")

	return created, nil
}

// ListActive возвращает локации, доступные для отметки
func (s *LocationService) ListActive(ctx context.Context) ([]*models.Location, error) {
	return s.locations.List(ctx, false)
}

// ListAll возвращает все локации
func (s *LocationService) ListAll(ctx context.Context) ([]*models.Location, error) {
	return s.locations.List(ctx, true)
}

// FormatLocation форматирует локацию для вывода
func (s *LocationService) FormatLocation(l *models.Location) string {
	status := "🟢"
	if !l.IsActive {
		status = "⚪️"
	}

	text := fmt.Sprintf("%s #%d %s\n🕘 Shift: %s", status, l.ID, l.Name, l.FormatShift())
	if l.Address != "" {
		text += fmt.Sprintf("\n📍 %s", l.Address)
	}
	if l.HasCoordinate() {
		text += fmt.Sprintf("\n🧭 %.6f, %.6f (±%dm)", *l.Latitude, *l.Longitude, l.RadiusMeters)
	} else {
		text += "\n🧭 no coordinates, check-in impossible"
	}
	return text
}

func applyLocationInput(location *models.Location, input LocationInput) error {
	start, err := shiftwindow.ParseClock(input.StartTime)
	if err != nil {
		return &ValidationError{Fields: []string{"StartTime (HH:MM)"}}
	}
	end, err := shiftwindow.ParseClock(input.EndTime)
	if err != nil {
		return &ValidationError{Fields: []string{"EndTime (HH:MM)"}}
	}

	location.Name = input.Name
	location.Address = input.Address
	location.Latitude = input.Latitude
	location.Longitude = input.Longitude
	location.RadiusMeters = input.RadiusMeters
	location.StartTime = start.String()
	location.EndTime = end.String()
	return nil
}
