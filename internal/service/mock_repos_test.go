package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"
)

// ── Mock LocationRepository ──

type mockLocationRepo struct {
	mu        sync.Mutex
	nextID    uint
	locations map[uint]*models.Location
}

func newMockLocationRepo() *mockLocationRepo {
	return &mockLocationRepo{locations: make(map[uint]*models.Location)}
}

func (m *mockLocationRepo) FindActive(_ context.Context, id uint) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locations[id]; ok && l.IsActive {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (m *mockLocationRepo) GetByID(_ context.Context, id uint) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locations[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (m *mockLocationRepo) List(_ context.Context, includeInactive bool) ([]*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Location
	for _, l := range m.locations {
		if includeInactive || l.IsActive {
			copied := *l
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockLocationRepo) Create(_ context.Context, location *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	location.ID = m.nextID
	copied := *location
	m.locations[location.ID] = &copied
	return nil
}

func (m *mockLocationRepo) Update(_ context.Context, location *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *location
	m.locations[location.ID] = &copied
	return nil
}

func (m *mockLocationRepo) SetActive(_ context.Context, id uint, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.IsActive = active
	return nil
}

func (m *mockLocationRepo) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locations[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.locations, id)
	return nil
}

func (m *mockLocationRepo) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.locations {
		if l.IsActive {
			n++
		}
	}
	return n, nil
}

// ── Mock CheckInRepository ──

type mockCheckInRepo struct {
	mu        sync.Mutex
	nextID    uint
	checkIns  map[uint]*models.CheckIn
	locations *mockLocationRepo
}

func newMockCheckInRepo(locations *mockLocationRepo) *mockCheckInRepo {
	return &mockCheckInRepo{checkIns: make(map[uint]*models.CheckIn), locations: locations}
}

// withLocation возвращает копию с подгруженной локацией, как Preload
func (m *mockCheckInRepo) withLocation(c *models.CheckIn) *models.CheckIn {
	copied := *c
	if m.locations != nil {
		if l, _ := m.locations.GetByID(context.Background(), c.LocationID); l != nil {
			copied.Location = *l
		}
	}
	return &copied
}

func (m *mockCheckInRepo) FindOpenForEmployee(_ context.Context, employeeID uint) (*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkIns {
		if c.EmployeeID == employeeID && c.Status == models.StatusOpen {
			return m.withLocation(c), nil
		}
	}
	return nil, nil
}

// Create проверяет и вставляет под одной блокировкой, как транзакция с уникальным индексом
func (m *mockCheckInRepo) Create(_ context.Context, checkIn *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkIns {
		if c.EmployeeID == checkIn.EmployeeID && c.Status == models.StatusOpen {
			return repository.ErrOpenCheckInExists
		}
	}
	m.nextID++
	checkIn.ID = m.nextID
	copied := *checkIn
	m.checkIns[checkIn.ID] = &copied
	return nil
}

func (m *mockCheckInRepo) Close(_ context.Context, checkIn *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.checkIns[checkIn.ID]
	if !ok || stored.Status != models.StatusOpen {
		return repository.ErrCheckInNotOpen
	}
	checkIn.Status = models.StatusClosed
	stored.Status = models.StatusClosed
	stored.CheckOutTime = checkIn.CheckOutTime
	stored.DurationSeconds = checkIn.DurationSeconds
	stored.CheckOutLatitude = checkIn.CheckOutLatitude
	stored.CheckOutLongitude = checkIn.CheckOutLongitude
	return nil
}

func (m *mockCheckInRepo) GetByID(_ context.Context, id uint) (*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.checkIns[id]; ok {
		return m.withLocation(c), nil
	}
	return nil, nil
}

func (m *mockCheckInRepo) sorted(filter func(*models.CheckIn) bool) []*models.CheckIn {
	var result []*models.CheckIn
	for _, c := range m.checkIns {
		if filter(c) {
			result = append(result, m.withLocation(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CheckInTime.After(result[j].CheckInTime) })
	return result
}

func limitTo(list []*models.CheckIn, limit int) []*models.CheckIn {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func (m *mockCheckInRepo) ListByEmployee(_ context.Context, employeeID uint, limit int) ([]*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return limitTo(m.sorted(func(c *models.CheckIn) bool { return c.EmployeeID == employeeID }), limit), nil
}

func (m *mockCheckInRepo) ListRecent(_ context.Context, limit int) ([]*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return limitTo(m.sorted(func(*models.CheckIn) bool { return true }), limit), nil
}

func (m *mockCheckInRepo) ListOpen(_ context.Context) ([]*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sorted(func(c *models.CheckIn) bool { return c.Status == models.StatusOpen })
	sort.SliceStable(list, func(i, j int) bool { return list[i].LocationID < list[j].LocationID })
	return list, nil
}

func (m *mockCheckInRepo) ListBetween(_ context.Context, from, to time.Time) ([]*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(c *models.CheckIn) bool {
		return !c.CheckInTime.Before(from) && c.CheckInTime.Before(to)
	}), nil
}

func (m *mockCheckInRepo) CountOpen(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(func(c *models.CheckIn) bool { return c.Status == models.StatusOpen }))), nil
}

func (m *mockCheckInRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(func(c *models.CheckIn) bool { return !c.CheckInTime.Before(since) }))), nil
}

func (m *mockCheckInRepo) SumDurationSince(_ context.Context, since time.Time) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, c := range m.checkIns {
		if c.Status == models.StatusClosed && !c.CheckInTime.Before(since) && c.DurationSeconds != nil {
			total += time.Duration(*c.DurationSeconds) * time.Second
		}
	}
	return total, nil
}

func (m *mockCheckInRepo) CountByLocation(_ context.Context, locationID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(func(c *models.CheckIn) bool { return c.LocationID == locationID }))), nil
}

// ── Mock EmployeeRepository ──

type mockEmployeeRepo struct {
	mu        sync.Mutex
	nextID    uint
	employees map[int64]*models.Employee
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{employees: make(map[int64]*models.Employee)}
}

func (m *mockEmployeeRepo) Create(_ context.Context, employee *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ChatID == employee.ChatID || e.Email == employee.Email {
			return repository.ErrEmployeeExists
		}
	}
	m.nextID++
	employee.ID = m.nextID
	copied := *employee
	m.employees[employee.ChatID] = &copied
	return nil
}

func (m *mockEmployeeRepo) GetByChatID(_ context.Context, chatID int64) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.employees[chatID]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, nil
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id uint) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockEmployeeRepo) Update(_ context.Context, employee *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *employee
	m.employees[employee.ChatID] = &copied
	return nil
}

func (m *mockEmployeeRepo) UpdateRole(_ context.Context, chatID int64, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[chatID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.SetRole(role)
	return nil
}

func (m *mockEmployeeRepo) List(_ context.Context) ([]*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Employee
	for _, e := range m.employees {
		copied := *e
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockEmployeeRepo) Count(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var admins int64
	for _, e := range m.employees {
		if e.IsAdmin() {
			admins++
		}
	}
	return int64(len(m.employees)), admins, nil
}

// ── Test helpers ──

func float64Ptr(v float64) *float64 { return &v }

// seedLocation добавляет активную локацию в центре Москвы со сменой 09:00-18:00
func seedLocation(t testing.TB, repo *mockLocationRepo) *models.Location {
	loc := &models.Location{
		Name:         "HQ",
		Latitude:     float64Ptr(55.7558),
		Longitude:    float64Ptr(37.6173),
		RadiusMeters: 100,
		StartTime:    "09:00",
		EndTime:      "18:00",
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), loc); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return loc
}
