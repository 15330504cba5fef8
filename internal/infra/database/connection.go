package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	_ "github.com/lib/pq"
)

// NewDBConnection opens the pool and pings it. The pool is shared by every
// intake call.
func NewDBConnection(connString string) (*sql.DB, error) {
	if connString == "" {
		return nil, eris.New("database: DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, eris.Wrap(err, "database: open")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "database: ping")
	}

	return db, nil
}
