// Package dbtest opens isolated in-memory sqlite databases migrated with every model.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/db/models"
)

// Open returns a fresh database for the calling test. A single pooled connection
// keeps sqlite writers serialized the way row locks serialize them in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client so services get a real WithTx.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

// SeedMovie inserts a catalog movie priced at price (e.g. "9.99").
func SeedMovie(t testing.TB, conn *gorm.DB, name, price string) models.Movie {
	t.Helper()
	movie := models.Movie{
		ID:     uuid.New(),
		Name:   name,
		Year:   2020,
		Price:  decimal.RequireFromString(price),
		Genres: []string{"drama"},
	}
	if err := conn.Create(&movie).Error; err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	return movie
}

// SetMoviePrice changes a catalog price, simulating drift between checkout steps.
func SetMoviePrice(t testing.TB, conn *gorm.DB, movieID uuid.UUID, price string) {
	t.Helper()
	if err := conn.Model(&models.Movie{}).Where("id = ?", movieID).
		Update("price", decimal.RequireFromString(price)).Error; err != nil {
		t.Fatalf("update movie price: %v", err)
	}
}
