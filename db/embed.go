// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every application table. Statements are written to
// be idempotent so the schema can be applied on every boot.
//
//go:embed migrations/001_schema.sql
var Schema string
