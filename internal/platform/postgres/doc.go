// Package postgres provides PostgreSQL implementations of the persistence
// interfaces declared in internal/store and internal/task. Queries go
// through database/sql with the pgx driver; the schema is managed by goose
// migrations embedded in this package.
package postgres
