package storage

import (
	"fmt"
	"path/filepath"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindBbolt  = "bbolt"
	KindSQLite = "sqlite"
)

// Open creates the backend named by kind, keeping its files under dataDir.
func Open(kind, dataDir string) (Backend, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindBbolt:
		return OpenBbolt(filepath.Join(dataDir, "orderset.bolt"))
	case KindSQLite, "":
		return OpenSQLite(filepath.Join(dataDir, "orderset.db"))
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory, bbolt or sqlite)", kind)
	}
}
