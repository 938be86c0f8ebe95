package postureboard

import (
	_ "embed"
)

var (
	//go:embed deploy/db/schema.sql
	schemaDDL []byte
)

// SchemaDDL returns the reference DDL of the relations postureboard reads.
func SchemaDDL() []byte {
	return schemaDDL
}
