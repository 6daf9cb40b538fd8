package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// DayStart returns midnight UTC of the day containing ts. Daily job caps
// count from this boundary.
func DayStart(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
