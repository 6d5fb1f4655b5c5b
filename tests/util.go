// Package testutil holds fixtures shared by test suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/storage/database"
)

// CreateParent stores a parent with the given password (none when pwd is empty).
func CreateParent(t *testing.T, repo account.Repository, name, email, pwd string) account.Parent {
	t.Helper()

	now := time.Now().UTC()
	p := account.Parent{Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	if pwd != "" {
		if err := p.SetPassword(pwd); err != nil {
			t.Fatalf("CreateParent() failed: %v", err)
		}
	}
	p, err := repo.EnsureParent(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateParent() failed: %v", err)
	}
	return p
}

func CreateStudent(t *testing.T, repo account.Repository, name, email, pwd string, age, grade, parentID int) account.Student {
	t.Helper()

	now := time.Now().UTC()
	s := account.Student{
		Name:      name,
		Email:     email,
		Age:       age,
		Grade:     grade,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SetPassword(pwd); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	s, err := repo.CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// PrepareDB opens a migrated Postgres test database and empties it.
// The test is skipped unless TEST_DATABASE_HOST is set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}

	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:       "postgres",
		Host:         host,
		Port:         envOr("TEST_DATABASE_PORT", "5432"),
		Name:         envOr("TEST_DATABASE_NAME", "jifunze_test"),
		User:         envOr("TEST_DATABASE_USER", "postgres"),
		Password:     envOr("TEST_DATABASE_PASSWORD", "postgres"),
		DisableTLS:   true,
		MaxOpenConns: 10,
		MaxIdleConns: 10,
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()

	q := "TRUNCATE bookmarks, tracks, game_scores, quiz_attempts, students, parents RESTART IDENTITY CASCADE"
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
