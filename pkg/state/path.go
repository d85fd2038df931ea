package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendAuto   = "auto"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ResolvePath expands a leading "~/" to the user's home directory.
func ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ResolveBackend maps the configured backend name to a concrete one.
// "auto" picks sqlite for .db/.sqlite/.sqlite3 files and json otherwise.
func ResolveBackend(path, backend string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(backend)); b {
	case "", BackendAuto:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".db", ".sqlite", ".sqlite3":
			return BackendSQLite, nil
		default:
			return BackendJSON, nil
		}
	case BackendJSON, BackendSQLite:
		return b, nil
	default:
		return "", fmt.Errorf("unknown state backend %q", backend)
	}
}
