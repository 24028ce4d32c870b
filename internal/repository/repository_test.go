package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"geo-attendance-bot/internal/config"
	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/repository"
	"geo-attendance-bot/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := storage.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), logrus.ErrorLevel)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })

	return db
}

func seed(t *testing.T, db *gorm.DB) (*models.Employee, *models.Location) {
	t.Helper()
	ctx := context.Background()

	emp := &models.Employee{ChatID: 100, Email: "ivan@example.com", FullName: "Ivan Petrov"}
	emp.ApplyDefaults()
	if err := repository.NewGormEmployeeRepository(db).Create(ctx, emp); err != nil {
		t.Fatalf("create employee: %v", err)
	}

	lat, lon := 55.7558, 37.6173
	loc := &models.Location{
		Name: "Head office", Address: "Tverskaya 1",
		Latitude: &lat, Longitude: &lon, RadiusMeters: 100,
		StartTime: "09:00", EndTime: "18:00", IsActive: true,
	}
	if err := repository.NewGormLocationRepository(db).Create(ctx, loc); err != nil {
		t.Fatalf("create location: %v", err)
	}

	return emp, loc
}

func openCheckIn(emp *models.Employee, loc *models.Location, at time.Time) *models.CheckIn {
	return &models.CheckIn{
		EmployeeID:  emp.ID,
		LocationID:  loc.ID,
		CheckInTime: at,
		Status:      models.StatusOpen,
	}
}

func TestCheckInRepository_CreateAndFindOpen(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	none, err := repo.FindOpenForEmployee(ctx, emp.ID)
	if err != nil || none != nil {
		t.Fatalf("expected no open check-in, got %v, %v", none, err)
	}

	at := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	if err := repo.Create(ctx, openCheckIn(emp, loc, at)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	open, err := repo.FindOpenForEmployee(ctx, emp.ID)
	if err != nil {
		t.Fatalf("FindOpenForEmployee: %v", err)
	}
	if open == nil || !open.CheckInTime.Equal(at) {
		t.Fatalf("unexpected open check-in: %+v", open)
	}
	if open.Location.Name != "Head office" {
		t.Errorf("location not preloaded: %+v", open.Location)
	}
}

func TestCheckInRepository_CreateRejectsSecondOpen(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, openCheckIn(emp, loc, time.Now())); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := repo.Create(ctx, openCheckIn(emp, loc, time.Now()))
	if !errors.Is(err, repository.ErrOpenCheckInExists) {
		t.Fatalf("expected ErrOpenCheckInExists, got %v", err)
	}
}

// Строка, вставленная после подсчета открытых отметок, но до INSERT,
// повторяет гонку двух транзакций в Postgres: отклонить вставку может только индекс.
func TestCheckInRepository_CreateMapsUniqueIndexViolation(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	injected := false
	err := db.Callback().Create().Before("gorm:create").Register("test:concurrent_open", func(tx *gorm.DB) {
		if injected || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "check_ins" {
			return
		}
		injected = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO check_ins (employee_id, location_id, check_in_time, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			emp.ID, loc.ID, at, models.StatusOpen, at, at,
		)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	err = repo.Create(ctx, openCheckIn(emp, loc, at.Add(time.Minute)))
	if !injected {
		t.Fatal("concurrent insert was not injected")
	}
	if !errors.Is(err, repository.ErrOpenCheckInExists) {
		t.Fatalf("expected ErrOpenCheckInExists from the unique index, got %v", err)
	}

	// транзакция откатилась целиком, вместе с вставленной строкой
	count, err := repo.CountOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("open check-ins = %d, want 0 after rollback", count)
	}
}

func TestCheckInRepository_ConcurrentCreate(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = repo.Create(ctx, openCheckIn(emp, loc, time.Now()))
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrOpenCheckInExists):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != attempts-1 {
		t.Fatalf("succeeded=%d rejected=%d, want 1 and %d", succeeded, rejected, attempts-1)
	}

	count, err := repo.CountOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("open check-ins = %d, want 1", count)
	}
}

func TestCheckInRepository_CloseIsConditional(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	in := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	checkIn := openCheckIn(emp, loc, in)
	if err := repo.Create(ctx, checkIn); err != nil {
		t.Fatal(err)
	}

	out := in.Add(8 * time.Hour)
	seconds := int64(8 * 3600)
	checkIn.CheckOutTime = &out
	checkIn.DurationSeconds = &seconds

	if err := repo.Close(ctx, checkIn); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if checkIn.Status != models.StatusClosed {
		t.Errorf("status = %s, want closed", checkIn.Status)
	}

	if err := repo.Close(ctx, checkIn); !errors.Is(err, repository.ErrCheckInNotOpen) {
		t.Fatalf("second Close: expected ErrCheckInNotOpen, got %v", err)
	}

	stored, err := repo.GetByID(ctx, checkIn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusClosed || stored.CheckOutTime == nil || !stored.CheckOutTime.Equal(out) {
		t.Fatalf("unexpected stored check-in: %+v", stored)
	}
	if d, ok := stored.Duration(); !ok || d != 8*time.Hour {
		t.Errorf("duration = %v, want 8h", d)
	}

	// после закрытия можно снова открыть
	if err := repo.Create(ctx, openCheckIn(emp, loc, out)); err != nil {
		t.Fatalf("re-open after close: %v", err)
	}
}

func TestCheckInRepository_Reports(t *testing.T) {
	db := setupTestDB(t)
	emp, loc := seed(t, db)
	repo := repository.NewGormCheckInRepository(db)
	ctx := context.Background()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i, hours := range []int{8, 6} {
		in := day.Add(time.Duration(9+i*10) * time.Hour)
		c := openCheckIn(emp, loc, in)
		if err := repo.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
		out := in.Add(time.Duration(hours) * time.Hour)
		seconds := int64(hours * 3600)
		c.CheckOutTime, c.DurationSeconds = &out, &seconds
		if err := repo.Close(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(ctx, openCheckIn(emp, loc, day.Add(30*time.Hour))); err != nil {
		t.Fatal(err)
	}

	total, err := repo.SumDurationSince(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if total != 14*time.Hour {
		t.Errorf("sum = %v, want 14h", total)
	}

	count, err := repo.CountSince(ctx, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count since next day = %d, want 1", count)
	}

	between, err := repo.ListBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(between) != 2 {
		t.Errorf("check-ins on first day = %d, want 2", len(between))
	}
	if between[0].Employee.FullName != "Ivan Petrov" {
		t.Errorf("employee not preloaded")
	}

	history, err := repo.ListByEmployee(ctx, emp.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || !history[0].IsOpen() {
		t.Errorf("history must be newest first and limited: %+v", history)
	}

	refs, err := repo.CountByLocation(ctx, loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refs != 3 {
		t.Errorf("references = %d, want 3", refs)
	}

	open, err := repo.ListOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Errorf("open = %d, want 1", len(open))
	}
}

func TestLocationRepository(t *testing.T) {
	db := setupTestDB(t)
	_, loc := seed(t, db)
	repo := repository.NewGormLocationRepository(db)
	ctx := context.Background()

	found, err := repo.FindActive(ctx, loc.ID)
	if err != nil || found == nil {
		t.Fatalf("FindActive: %v, %v", found, err)
	}

	if err := repo.SetActive(ctx, loc.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	found, err = repo.FindActive(ctx, loc.ID)
	if err != nil || found != nil {
		t.Fatalf("inactive location must not be found: %v, %v", found, err)
	}

	inactive := &models.Location{Name: "Warehouse", StartTime: "22:00", EndTime: "06:00", RadiusMeters: 50, IsActive: false}
	if err := repo.Create(ctx, inactive); err != nil {
		t.Fatal(err)
	}
	if inactive.IsActive {
		t.Fatal("Create must not flip the inactive flag in memory")
	}
	stored, err := repo.GetByID(ctx, inactive.ID)
	if err != nil || stored == nil || stored.IsActive {
		t.Fatalf("inactive flag must be persisted: %+v, %v", stored, err)
	}
	found, err = repo.FindActive(ctx, inactive.ID)
	if err != nil || found != nil {
		t.Fatalf("location created inactive must not be found as active: %+v, %v", found, err)
	}

	active, err := repo.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	all, err := repo.List(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 || len(all) != 2 {
		t.Errorf("active=%d all=%d, want 0 and 2", len(active), len(all))
	}

	if err := repo.Delete(ctx, inactive.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, inactive.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("second Delete: expected ErrRecordNotFound, got %v", err)
	}

	missing, err := repo.FindActive(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("unknown id: %v, %v", missing, err)
	}
}

func TestEmployeeRepository(t *testing.T) {
	db := setupTestDB(t)
	emp, _ := seed(t, db)
	repo := repository.NewGormEmployeeRepository(db)
	ctx := context.Background()

	dup := &models.Employee{ChatID: emp.ChatID, Email: "other@example.com", FullName: "Dup"}
	dup.ApplyDefaults()
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrEmployeeExists) {
		t.Fatalf("expected ErrEmployeeExists, got %v", err)
	}

	if err := repo.UpdateRole(ctx, emp.ChatID, models.Role(models.RoleAdmin)); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	got, err := repo.GetByChatID(ctx, emp.ChatID)
	if err != nil || got == nil || !got.IsAdmin() {
		t.Fatalf("expected admin, got %+v, %v", got, err)
	}

	total, admins, err := repo.Count(ctx)
	if err != nil || total != 1 || admins != 1 {
		t.Fatalf("Count = %d, %d, %v", total, admins, err)
	}

	if err := repo.UpdateRole(ctx, 12345, models.Role(models.RoleAdmin)); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("unknown chat: expected ErrRecordNotFound, got %v", err)
	}
}
