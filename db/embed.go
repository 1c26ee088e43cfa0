// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the DDL for every marketplace table, including the
// order-number counter singleton and the conversion outbox.
//
//go:embed migrations/001_schema.sql
var Schema string
