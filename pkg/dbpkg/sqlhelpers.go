package dbpkg

import (
	"database/sql"
	"strconv"
	"strings"
)

// Setup sets up connection with database.
func Setup(driver, source string) (*sql.DB, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Rebind rewrites ? placeholders into the positional $n form for postgres.
// Queries for other drivers are returned unchanged.
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	var sb strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++

			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))

			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}
