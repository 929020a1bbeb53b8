package sqlite

import "embed"

// SchemaFS holds the versioned schema migrations compiled into the binary.
//
//go:embed schema/*.sql
var SchemaFS embed.FS

// SchemaDir is the directory of SchemaFS containing the migration files.
const SchemaDir = "schema"
