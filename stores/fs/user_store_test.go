package fs

import (
	"context"
	"errors"
	"sync"
	"testing"

	secrets "github.com/harsh-1012/secrets"
)

func TestCreateAndGetLocalUser(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	user, err := store.CreateLocalUser(ctx, "Alice", "hash-1")
	if err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("Expected a generated user id")
	}
	if user.Username == nil || *user.Username != "Alice" {
		t.Errorf("Expected username Alice, got %+v", user)
	}

	byID, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.PasswordHash == nil || *byID.PasswordHash != "hash-1" {
		t.Errorf("Expected stored hash, got %+v", byID)
	}

	// lookup is case-insensitive but the stored casing is preserved
	byName, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("Expected the same user, got %s vs %s", byName.ID, user.ID)
	}
	if *byName.Username != "Alice" {
		t.Errorf("Expected original casing preserved, got %s", *byName.Username)
	}
}

func TestCreateLocalUserDuplicate(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	if _, err := store.CreateLocalUser(ctx, "alice", "hash-1"); err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}
	_, err := store.CreateLocalUser(ctx, "ALICE", "hash-2")
	if !errors.Is(err, secrets.ErrDuplicateUsername) {
		t.Errorf("Expected ErrDuplicateUsername, got %v", err)
	}
}

func TestGetMissingUser(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, secrets.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound by id, got %v", err)
	}
	if _, err := store.GetUserByUsername(ctx, "missing"); !errors.Is(err, secrets.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound by username, got %v", err)
	}
}

func TestEnsureProviderUser(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	user, created, err := store.EnsureProviderUser(ctx, "provider-1")
	if err != nil {
		t.Fatalf("EnsureProviderUser failed: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the user")
	}
	if user.ProviderID == nil || *user.ProviderID != "provider-1" {
		t.Errorf("Expected provider id set, got %+v", user)
	}
	if user.Username != nil {
		t.Errorf("Expected no username on a federated user, got %+v", user)
	}

	again, created, err := store.EnsureProviderUser(ctx, "provider-1")
	if err != nil {
		t.Fatalf("EnsureProviderUser failed: %v", err)
	}
	if created {
		t.Error("Expected second call to find the existing user")
	}
	if again.ID != user.ID {
		t.Errorf("Expected the same user, got %s vs %s", again.ID, user.ID)
	}
}

// TestEnsureProviderUserConcurrent checks the find-or-create is atomic: many
// concurrent first logins for one identity must yield exactly one record.
func TestEnsureProviderUserConcurrent(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	const workers = 20
	ids := make([]string, workers)
	createdCount := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, created, err := store.EnsureProviderUser(ctx, "provider-racy")
			if err != nil {
				t.Errorf("EnsureProviderUser failed: %v", err)
				return
			}
			ids[i] = user.ID
			createdCount[i] = created
		}()
	}
	wg.Wait()

	creations := 0
	for i := 0; i < workers; i++ {
		if createdCount[i] {
			creations++
		}
		if ids[i] != ids[0] {
			t.Fatalf("Expected a single user record, got %s and %s", ids[0], ids[i])
		}
	}
	if creations != 1 {
		t.Errorf("Expected exactly one creation, got %d", creations)
	}
}

func TestSetSecretOverwrites(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	user, err := store.CreateLocalUser(ctx, "alice", "hash-1")
	if err != nil {
		t.Fatalf("CreateLocalUser failed: %v", err)
	}

	if err := store.SetSecret(ctx, user.ID, "first secret"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	if err := store.SetSecret(ctx, user.ID, "second secret"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}

	got, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Secret == nil || *got.Secret != "second secret" {
		t.Errorf("Expected the secret to be overwritten, got %+v", got.Secret)
	}

	if err := store.SetSecret(ctx, "missing", "x"); !errors.Is(err, secrets.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound for unknown user, got %v", err)
	}
}

func TestListSecrets(t *testing.T) {
	store := NewFSUserStore(t.TempDir())
	ctx := context.Background()

	alice, _ := store.CreateLocalUser(ctx, "alice", "hash-1")
	bob, _ := store.CreateLocalUser(ctx, "bob", "hash-2")
	if _, _, err := store.EnsureProviderUser(ctx, "provider-1"); err != nil {
		t.Fatalf("EnsureProviderUser failed: %v", err)
	}

	texts, err := store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets failed: %v", err)
	}
	if len(texts) != 0 {
		t.Fatalf("Expected no secrets yet, got %v", texts)
	}

	if err := store.SetSecret(ctx, alice.ID, "secret a"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	if err := store.SetSecret(ctx, bob.ID, "secret b"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}

	texts, err = store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets failed: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("Expected two secrets, got %v", texts)
	}
	found := map[string]bool{}
	for _, text := range texts {
		found[text] = true
	}
	if !found["secret a"] || !found["secret b"] {
		t.Errorf("Expected both secret texts, got %v", texts)
	}
}
