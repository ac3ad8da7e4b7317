package sqlxrepos

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
)

const pqUniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func getExec(def core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return def
}

// isUniqueViolation reports a psql unique constraint error.
func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// withClause interpolates a WHERE clause into a query template.
func withClause(query, clause string) string {
	return fmt.Sprintf(query, clause)
}

// expandIn expands `?`-style IN clauses and rebinds to psql placeholders.
func expandIn(query string, args ...interface{}) (string, []interface{}, error) {
	q, in, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding IN clause")
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), in, nil
}
