package ledger

import "fmt"

// Rotation bounds a JSONL ledger. A zero MaxSizeMB disables rotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open returns the store for backend: "none", "jsonl" or "sqlite".
func Open(backend, path string, rot Rotation) (LogStore, error) {
	switch backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		if rot.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(path, rot.MaxSizeMB, rot.MaxBackups, rot.MaxAgeDays)
		}
		return NewJSONLStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %s", backend)
	}
}
