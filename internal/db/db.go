package db

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Connect opens the Postgres pool, retrying while the database boots.
func Connect(dsn string) (*gorm.DB, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			return gdb, nil
		}
		lastErr = err

		log.Warnf("[DB] failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Plan{},
		&models.ContractRequest{},
		&models.ChatMessage{},
	)
}
