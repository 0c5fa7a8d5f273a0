// Package db embeds the SQLite schema migrations and demo seed data.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.sql
var SeedFiles embed.FS
