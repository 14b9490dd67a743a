// Package database provides the PostgreSQL connection pool for the transcript archive.
package database
