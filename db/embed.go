// Package db embeds the discount rule schema and the default rule seed.
package db

import _ "embed"

// Schema contains the DDL statements for the discount_rules table.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedRules is the default rule set loaded when no seed file is configured.
//
//go:embed seed/rules.yaml
var SeedRules []byte
