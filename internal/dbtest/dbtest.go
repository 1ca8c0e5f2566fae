// Package dbtest opens throwaway SQLite databases and seeds catalog rows for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var nameCleaner = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// OpenSQLite returns a client over a private in-memory database with the full schema.
func OpenSQLite(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", nameCleaner.Replace(t.Name()), uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.NewFromConn(conn)
}

// ProductSeed describes a catalog row to insert. Zero values are filled with fake data.
type ProductSeed struct {
	Name     string
	Price    string
	Inactive bool
	// Sizes maps a size label to its stock quantity.
	Sizes map[string]int
}

// SeedProduct inserts a product with its sizes and returns it with Sizes loaded.
func SeedProduct(t testing.TB, conn *gorm.DB, seed ProductSeed) *models.Product {
	t.Helper()

	name := seed.Name
	if name == "" {
		name = gofakeit.ProductName()
	}
	price := decimal.NewFromFloat(gofakeit.Price(5, 200)).Round(2)
	if seed.Price != "" {
		price = decimal.RequireFromString(seed.Price)
	}
	image := gofakeit.URL()

	product := &models.Product{
		Name:      name,
		Slug:      fmt.Sprintf("%s-%s", strings.ToLower(nameCleaner.Replace(name)), uuid.NewString()[:8]),
		Price:     price,
		MainImage: &image,
		IsActive:  !seed.Inactive,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	for label, qty := range seed.Sizes {
		size := &models.ProductSize{ProductID: product.ID, Size: label, Quantity: qty}
		if err := conn.Create(size).Error; err != nil {
			t.Fatalf("seed size %s: %v", label, err)
		}
	}
	if err := conn.Preload("Sizes").First(product, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}

// SizeID returns the id of the labelled size on p.
func SizeID(t testing.TB, p *models.Product, label string) uuid.UUID {
	t.Helper()
	for _, s := range p.Sizes {
		if s.Size == label {
			return s.ID
		}
	}
	t.Fatalf("product %s has no size %q", p.ID, label)
	return uuid.Nil
}
