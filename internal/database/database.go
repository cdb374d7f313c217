package database

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"bgtask/internal/config"
)

// New opens the Postgres pool the task store runs on. Connect pings the
// database, so a bad DSN fails here rather than on first use.
func New(conf *config.BGConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", conf.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("could not connect to database %q: %w", conf.Database.Name, err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
