package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// ValidateDir checks that every .sql file in dir has a unique 14-digit version,
// an Up block followed by a Down block, and balanced statement markers.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}

		txt := string(b)
		up := strings.Index(txt, "-- +goose Up")
		down := strings.Index(txt, "-- +goose Down")
		switch {
		case up < 0:
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
		case down < 0:
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
		case down < up:
			return fmt.Errorf("migration %q has its Down block before Up", name)
		}
		if strings.Count(txt, "-- +goose StatementBegin") != strings.Count(txt, "-- +goose StatementEnd") {
			return fmt.Errorf("migration %q has unbalanced StatementBegin/StatementEnd markers", name)
		}
	}

	return nil
}
