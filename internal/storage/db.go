package storage

import (
	"fmt"
	"time"

	"geo-attendance-bot/internal/config"
	"geo-attendance-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open подключается к базе данных выбранным драйвером
func Open(driver, dsn string, logLevel logrus.Level) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLogLevel := logger.Warn
	if logLevel >= logrus.DebugLevel {
		gormLogLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// нарушение уникального индекса приходит как gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}

	if driver == config.DriverSQLite {
		// SQLite пишет из одного соединения, иначе конкурентные записи получают "database is locked"
		sqlDB.SetMaxOpenConns(1)

		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			logrus.Infof("Warning: Failed to enable foreign keys: %v", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Migrate создает таблицы и индексы
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Employee{}, &models.Location{}, &models.CheckIn{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// не больше одной открытой отметки на сотрудника
	err := db.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_check_ins_one_open ON check_ins (employee_id) WHERE status = '%s'",
		models.StatusOpen,
	)).Error
	if err != nil {
		return fmt.Errorf("create open check-in index: %w", err)
	}

	return nil
}

// Close закрывает соединение с БД
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
