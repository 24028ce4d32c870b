package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"geo-attendance-bot/internal/config"
	"geo-attendance-bot/internal/handler"
	"geo-attendance-bot/internal/repository"
	"geo-attendance-bot/internal/service"
	"geo-attendance-bot/internal/storage"
	"geo-attendance-bot/pkg/telegram"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("Initializing config...")
	cfg := config.GetBotConfig()
	logrus.SetLevel(cfg.LogLevel)
	logrus.Info("Config initialized...")

	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logrus.Fatal("Failed to connect to database:", err)
	}

	if err := storage.Migrate(db); err != nil {
		logrus.Fatal("Failed to migrate database:", err)
	}

	checkInRepo := repository.NewGormCheckInRepository(db)
	locationRepo := repository.NewGormLocationRepository(db)
	employeeRepo := repository.NewGormEmployeeRepository(db)

	// Ядро отметок: состояние сессий и правила прихода/ухода
	attendanceState := service.NewAttendanceState(checkInRepo)
	engine := service.NewCheckInEngine(locationRepo, attendanceState, cfg.GraceMinutes)

	employeeService := service.NewEmployeeService(employeeRepo)
	locationService := service.NewLocationService(locationRepo, checkInRepo)
	reportService := service.NewReportService(checkInRepo, employeeRepo, locationRepo, cfg.Timezone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализируем администратора из конфига
	if err := employeeService.InitializeAdmin(ctx, cfg.BaseAdminChatID); err != nil {
		logrus.Infof("Warning: Failed to initialize admin: %v", err)
	} else if cfg.BaseAdminChatID != 0 {
		logrus.Infof("Admin initialized with chat ID: %d", cfg.BaseAdminChatID)
	}

	if cfg.LocationsFile != "" {
		created, err := locationService.LoadFromJSON(ctx, cfg.LocationsFile)
		if err != nil {
			logrus.WithError(err).Warn("Failed to load locations file")
		} else {
			logrus.Infof("Loaded %d locations from %s", created, cfg.LocationsFile)
		}
	}

	client, err := telegram.NewClient(cfg.TelegramToken, cfg.BotDebug)
	if err != nil {
		logrus.Fatal("Failed to create Telegram client:", err)
	}

	logrus.Infof("Authorized on account %s", client.Bot.Self.UserName)

	botHandler := handler.NewHandler(
		client,
		employeeService,
		locationService,
		reportService,
		engine,
		cfg,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		botHandler.HandleUpdates(ctx, client.Updates())
	}()

	logrus.WithFields(logrus.Fields{
		"driver":        cfg.DatabaseDriver,
		"grace_minutes": cfg.GraceMinutes,
		"timezone":      cfg.Timezone.String(),
	}).Info("Bot started. Press Ctrl+C to stop.")

	<-ctx.Done()
	client.Stop()
	<-done

	if err := storage.Close(db); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}

	logrus.Info("Bot stopped gracefully")
}
