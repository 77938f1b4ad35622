package services

import (
	"testing"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQLite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.FieldKey{},
		&models.FormType{},
		&models.FormInstance{},
		&models.CustomAction{},
		&models.Submission{},
		&models.FieldValue{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CleanupTestData removes all test data from the database.
// Exported for use in handler tests
func CleanupTestData(t *testing.T, db *gorm.DB) {
	// Delete in reverse order of dependencies
	for _, table := range []string{
		"attribute_form_values",
		"attribute_form_submissions",
		"attribute_form_actions",
		"attribute_form_instances",
		"attribute_form_types",
		"attribute_keys",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}
