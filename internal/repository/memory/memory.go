// Package memory persists conversation turns per session.
package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/metrics"
)

// Driver names accepted in configuration.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverNone   = "none"
)

// prepare fills ids and timestamps. Ids are UUIDv7 so they sort in insertion order.
func prepare(turns []domain.Turn) ([]domain.Turn, error) {
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		if t.SessionID == "" {
			return nil, domain.ErrInvalidQuery
		}
		if t.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			t.ID = id.String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out[i] = t
	}
	return out, nil
}

func observe(driver, op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.MemoryOperationsTotal.WithLabelValues(driver, op, status).Inc()
}
