// Package postgres embeds the SQL migrations for the option store.
package postgres

import (
	"embed"
	"io/fs"
	"sort"
)

// FS contains the option store migrations.
//
//go:embed options/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "options"

// Files returns the migration paths in lexical (apply) order.
func Files() ([]string, error) {
	names, err := fs.Glob(FS, Dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
