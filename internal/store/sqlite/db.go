// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"
	// DriverPureGo is the modernc.org/sqlite driver name.
	DriverPureGo = "sqlite"
)

// dsn builds a connection string with WAL, a busy timeout and immediate
// transactions for the given driver. Immediate transactions take the write
// lock at BEGIN, so a writer waits out the busy timeout instead of failing
// to upgrade a stale read snapshot. The two drivers spell their pragmas
// differently.
func dsn(driver, dbPath string) (string, error) {
	switch driver {
	case "", DriverCGO:
		return dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", nil
	case DriverPureGo:
		return dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// openDB opens and pings a database with the given driver.
func openDB(driver, dbPath string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCGO
	}
	conn, err := dsn(driver, dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return db, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// timeLayout is RFC3339 with fixed-width nanoseconds so stored values sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serialises a time.Time to UTC RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
