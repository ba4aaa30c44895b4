// Package testing provides an in-memory store, a throwaway postgres database
// and fixtures for tests of the decision core
package testing

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/amirphl/nba-decision-core/migrations"
	"github.com/caarlos0/env/v11"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDBConfig holds configuration for test database connections
type TestDBConfig struct {
	Host     string `env:"TEST_DB_HOST" envDefault:"localhost"`
	Port     int    `env:"TEST_DB_PORT" envDefault:"5432"`
	User     string `env:"TEST_DB_USER" envDefault:"postgres"`
	Password string `env:"TEST_DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"TEST_DB_SSL_MODE" envDefault:"disable"`
}

func (c TestDBConfig) dsn(dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.SSLMode)
	if dbName != "" {
		dsn += " dbname=" + dbName
	}
	return dsn
}

// GetTestDBConfig loads test database configuration from environment variables
func GetTestDBConfig() (*TestDBConfig, error) {
	cfg := &TestDBConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse test db env: %w", err)
	}
	return cfg, nil
}

// TestDB is a freshly migrated database dropped on teardown
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

// SetupTestDB creates a uniquely named database and applies every migration
func SetupTestDB() (*TestDB, error) {
	cfg, err := GetTestDBConfig()
	if err != nil {
		return nil, err
	}
	dbName := fmt.Sprintf("nba_test_%d_%d", time.Now().Unix(), rand.IntN(10000))

	adminDB, err := gorm.Open(postgres.Open(cfg.dsn("")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := adminDB.Exec("CREATE DATABASE " + dbName).Error; err != nil {
		closeGorm(adminDB)
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}
	closeGorm(adminDB)

	testDB, err := gorm.Open(postgres.Open(cfg.dsn(dbName)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}

	tdb := &TestDB{DB: testDB, Name: dbName, config: cfg}
	sqlDB, err := testDB.DB()
	if err == nil {
		err = migrations.Up(sqlDB)
	}
	if err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", dbName, err)
	}
	return tdb, nil
}

// TeardownTestDB closes the pool and drops the database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	closeGorm(tdb.DB)

	adminDB, err := gorm.Open(postgres.Open(tdb.config.dsn("")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL for cleanup: %v", err)
		return err
	}
	defer closeGorm(adminDB)

	if err := adminDB.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()",
		tdb.Name).Error; err != nil {
		log.Printf("Warning: failed to terminate connections to test database %s: %v", tdb.Name, err)
	}
	if err := adminDB.Exec("DROP DATABASE IF EXISTS " + tdb.Name).Error; err != nil {
		log.Printf("Warning: failed to drop test database %s: %v", tdb.Name, err)
		return err
	}
	return nil
}

// ClearAllTables empties every table, children first
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		"offer_assignments",
		"audit_entries",
		"arbitration_scores",
		"legal_approvals",
		"comm_templates",
		"benefit_configs",
		"action_configs",
		"audience_configs",
		"campaign_versions",
		"campaigns",
		"customers",
	}
	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// RequireTestDB returns a migrated database or skips the test when
// TEST_DB_HOST is not set
func RequireTestDB(t testing.TB) *TestDB {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set; skipping postgres integration test")
	}
	tdb, err := SetupTestDB()
	if err != nil {
		t.Fatalf("failed to setup test database: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.TeardownTestDB(); err != nil {
			t.Logf("failed to cleanup test database: %v", err)
		}
	})
	return tdb
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
