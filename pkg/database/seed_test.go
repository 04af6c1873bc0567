package database

import (
	"os"
	"regexp"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// The initial migration seeds the only admin account, so the hash it
// carries must actually verify against the documented password.
func TestSeedAdminPasswordHash(t *testing.T) {
	raw, err := os.ReadFile("../../migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	re := regexp.MustCompile(`'(\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53})'`)
	m := re.FindSubmatch(raw)
	if m == nil {
		t.Fatal("no bcrypt hash found in initial migration")
	}

	if err := bcrypt.CompareHashAndPassword(m[1], []byte("admin123")); err != nil {
		t.Fatalf("seed admin hash does not match admin123: %v", err)
	}
}
