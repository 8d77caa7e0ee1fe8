package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/database"
	"github.com/nerrad567/cuelogic-core/migrations"
)

// testHasher keeps Argon2 fast in tests.
var testHasher = Hasher{Time: 1, Memory: 1024, Threads: 1}

var testSecret = strings.Repeat("s", minSecretLength)

func newTestRepo(t *testing.T) *SQLiteUserRepository {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewUserRepository(db.DB)
}

// fakeClock returns a controllable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now()}
	issuer, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	issuer.now = clock.now
	svc, err := NewService(newTestRepo(t), issuer, testHasher, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, clock
}
