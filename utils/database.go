package utils

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to DATABASE_URL. "sqlite:<path>" opens an embedded SQLite file
// (":memory:" works too); everything else is handed to the Postgres driver.
func OpenDatabase(dsn string, quiet bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if quiet {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		if path == "" {
			return nil, fmt.Errorf("sqlite DATABASE_URL needs a path")
		}
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
