package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const maxSlugLen = 64

var (
	slugDisallowedRe = regexp.MustCompile(`[^a-z0-9]+`)

	// ErrEmptySlug is returned when a migration name has no usable characters.
	ErrEmptySlug = errors.New("migration name has no alphanumeric characters")
	// ErrMigrationExists is returned when the target file is already present.
	ErrMigrationExists = errors.New("migration already exists")
)

// nowFunc is swapped in tests to pin the migration version.
var nowFunc = time.Now

// Slug turns a free-form description ("Add refunds table") into the
// snake_case suffix used in migration filenames. The result is capped at 64
// characters.
func Slug(name string) string {
	slug := slugDisallowedRe.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "_")
	}
	return slug
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<slug>.sql with empty Up
// and Down blocks and returns the path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := Slug(name)
	if slug == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySlug, name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version := nowFunc().UTC().Format("20060102150405")
	path := filepath.Join(dir, version+"_"+slug+".sql")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrMigrationExists, path)
	}

	if err := os.WriteFile(path, []byte(migrationTemplate(slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

func migrationTemplate(slug string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n\n", strings.ReplaceAll(slug, "_", " "))
	b.WriteString("-- +goose Up\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n\n")
	b.WriteString("-- +goose Down\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n")
	return b.String()
}
