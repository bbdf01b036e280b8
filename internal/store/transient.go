package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/retain-cli/internal/resilience"
)

// Postgres SQLSTATE classes worth retrying: connection failures (08),
// serialization/deadlock (40), insufficient resources (53), and
// operator intervention such as failover shutdowns (57).
var transientPgPrefixes = []string{"08", "40", "53", "57"}

var transientMessages = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"database is locked",
	"conn busy",
	"unexpected EOF",
}

// markTransientDB wraps retryable database errors so resilience.Do
// will back off and retry them. Permanent errors pass through as-is.
func markTransientDB(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, prefix := range transientPgPrefixes {
			if strings.HasPrefix(pgErr.Code, prefix) {
				return resilience.NewTransientError(err, 0)
			}
		}
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientMessages {
		if strings.Contains(msg, strings.ToLower(fragment)) {
			return resilience.NewTransientError(err, 0)
		}
	}
	return err
}
