package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
	DefaultExportDays   = 30
	MaxExportDays       = 366
)

var ErrExportGenerateFail = errors.New("failed to generate export workbook")

// DashboardStats - сводка для администратора
type DashboardStats struct {
	CheckedInNow    int64
	TodayCheckIns   int64
	TodayHours      time.Duration
	Employees       int64
	Admins          int64
	ActiveLocations int64
}

// LocationAttendance - сотрудники на смене в одной локации
type LocationAttendance struct {
	LocationID   uint
	LocationName string
	Sessions     []*models.CheckIn
}

type ReportService struct {
	checkIns  repository.CheckInRepository
	employees repository.EmployeeRepository
	locations repository.LocationRepository
	tz        *time.Location
	now       func() time.Time
	logger    *logrus.Logger
}

func NewReportService(
	checkIns repository.CheckInRepository,
	employees repository.EmployeeRepository,
	locations repository.LocationRepository,
	tz *time.Location,
) *ReportService {
	if tz == nil {
		tz = time.Local
	}
	return &ReportService{
		checkIns:  checkIns,
		employees: employees,
		locations: locations,
		tz:        tz,
		now:       time.Now,
		logger:    newLogger(),
	}
}

// startOfDay возвращает полночь текущего дня в часовом поясе отчетов
func (s *ReportService) startOfDay() time.Time {
	now := s.now().In(s.tz)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.tz)
}

// Dashboard собирает сводку за сегодня
func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	today := s.startOfDay()

	var err error
	if stats.CheckedInNow, err = s.checkIns.CountOpen(ctx); err != nil {
		return nil, fmt.Errorf("count open check-ins: %w", err)
	}
	if stats.TodayCheckIns, err = s.checkIns.CountSince(ctx, today); err != nil {
		return nil, fmt.Errorf("count today check-ins: %w", err)
	}
	if stats.TodayHours, err = s.checkIns.SumDurationSince(ctx, today); err != nil {
		return nil, fmt.Errorf("sum today hours: %w", err)
	}
	if stats.Employees, stats.Admins, err = s.employees.Count(ctx); err != nil {
		return nil, fmt.Errorf("count employees: %w", err)
	}
	if stats.ActiveLocations, err = s.locations.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("count locations: %w", err)
	}

	return stats, nil
}

// ActiveByLocation группирует открытые сессии по локациям
func (s *ReportService) ActiveByLocation(ctx context.Context) ([]LocationAttendance, error) {
	open, err := s.checkIns.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open check-ins: %w", err)
	}

	var groups []LocationAttendance
	index := make(map[uint]int)
	for _, c := range open {
		i, ok := index[c.LocationID]
		if !ok {
			name := c.Location.Name
			if name == "" {
				name = fmt.Sprintf("Location #%d", c.LocationID)
			}
			groups = append(groups, LocationAttendance{LocationID: c.LocationID, LocationName: name})
			i = len(groups) - 1
			index[c.LocationID] = i
		}
		groups[i].Sessions = append(groups[i].Sessions, c)
	}

	return groups, nil
}

// Log возвращает последние отметки всех сотрудников
func (s *ReportService) Log(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	return s.checkIns.ListRecent(ctx, clampLimit(limit))
}

// History возвращает последние отметки сотрудника
func (s *ReportService) History(ctx context.Context, employeeID uint, limit int) ([]*models.CheckIn, error) {
	return s.checkIns.ListByEmployee(ctx, employeeID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

var exportHeaders = []string{"Employee", "Email", "Location", "Check In", "Check Out", "Duration", "Status"}

// Export выгружает отметки за последние days дней в xlsx.
// Возвращает содержимое, имя файла и ошибку.
func (s *ReportService) Export(ctx context.Context, days int) (*bytes.Buffer, string, error) {
	if days <= 0 {
		days = DefaultExportDays
	}
	if days > MaxExportDays {
		days = MaxExportDays
	}

	to := s.now()
	from := s.startOfDay().AddDate(0, 0, -(days - 1))

	checkIns, err := s.checkIns.ListBetween(ctx, from, to.Add(time.Second))
	if err != nil {
		return nil, "", fmt.Errorf("list check-ins: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeExportSheet(f, checkIns, s.tz); err != nil {
		s.logger.WithError(err).Error("Failed to fill export workbook")
		return nil, "", ErrExportGenerateFail
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.WithError(err).Error("Failed to write export workbook")
		return nil, "", ErrExportGenerateFail
	}

	s.logger.WithFields(logrus.Fields{
		"days": days,
		"rows": len(checkIns),
	}).Info("Attendance export generated")

	filename := fmt.Sprintf("attendance_%s.xlsx", to.In(s.tz).Format("2006-01-02"))
	return buf, filename, nil
}

// exportRow возвращает значения строки в порядке exportHeaders
func exportRow(c *models.CheckIn, tz *time.Location) []string {
	checkOut := ""
	if c.CheckOutTime != nil {
		checkOut = c.CheckOutTime.In(tz).Format("2006-01-02 15:04:05")
	}

	return []string{
		c.Employee.FullName,
		c.Employee.Email,
		c.Location.Name,
		c.CheckInTime.In(tz).Format("2006-01-02 15:04:05"),
		checkOut,
		c.FormatDuration(),
		c.Status,
	}
}

// writeExportSheet заполняет лист Attendance: заголовок и по строке на отметку
func writeExportSheet(f *excelize.File, checkIns []*models.CheckIn, tz *time.Location) error {
	const sheet = "Attendance"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for _, w := range []struct {
		from, to string
		width    float64
	}{{"A", "C", 24}, {"D", "E", 20}, {"F", "G", 12}} {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, h := range exportHeaders {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			return err
		}
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, c := range checkIns {
		for col, value := range exportRow(c, tz) {
			if err := setCell(f, sheet, col+1, i+2, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// setCell пишет значение по номеру колонки и строки, обе с единицы
func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, name, value)
}
