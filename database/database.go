package database

import (
	"fmt"
	"time"

	"TajiSignBot/configuration"
	"TajiSignBot/logger"
	"TajiSignBot/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() error {
	logger.Log.Info("Connecting to database...")
	cfg := configuration.Get()

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s%s",
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Name,
			cfg.Database.Var)
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(); err != nil {
		return err
	}

	go monitorDatabaseHealth()

	return nil
}

func Migrate() error {
	if err := DB.AutoMigrate(&models.Binding{}, &models.SignRecord{}, &models.Subscription{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database models: %w", err)
	}
	return nil
}

func monitorDatabaseHealth() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sqlDB, err := DB.DB()
		if err != nil {
			logger.Log.WithError(err).Error("Failed to get database instance for health check")
			continue
		}

		if err := sqlDB.Ping(); err != nil {
			logger.Log.WithError(err).Error("Database health check failed")
			continue
		}

		stats := sqlDB.Stats()
		logger.Log.Debugf("DB Stats - Open connections: %d, In use: %d, Idle: %d",
			stats.OpenConnections, stats.InUse, stats.Idle)
	}
}

func GetDB() *gorm.DB {
	return DB
}
