// Package postgres implements the report and task stores on PostgreSQL
// through the pgx database/sql driver. The schema lives in the embedded
// migrations package and is applied with goose.
package postgres
