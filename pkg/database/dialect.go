package database

import (
	"strconv"
	"strings"
)

// Dialect names the database/sql driver and the SQL flavour it speaks
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// IsValid returns true for supported dialects
func (d Dialect) IsValid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// Rebind rewrites `?` placeholders into `$n` for PostgreSQL.
// Placeholders inside single-quoted literals are left untouched.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MigrationsSubdir is the folder under the migrations root holding this dialect's scripts
func (d Dialect) MigrationsSubdir() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}
