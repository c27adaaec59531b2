package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// memUserStore is an in-memory UserStore for gateway tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*User // by id
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User)}
}

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == strings.ToLower(u.Email) {
			return ErrAlreadyExists
		}
	}
	copied := *u
	copied.Email = strings.ToLower(u.Email)
	s.users[u.ID] = &copied
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordTemporary = temporary
	return nil
}

func newTestService(t *testing.T) (*Service, *memUserStore) {
	t.Helper()
	store := newMemUserStore()
	svc, err := NewService(store, newTestTokenService(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestRegisterDuplicateIsEnumerationSafe(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "User@Example.com", "Passw0rd!", "data_subject"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	first, err := store.FindByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}

	// Second registration with a different password succeeds identically
	// and must not overwrite the stored hash.
	if err := svc.Register(ctx, "user@example.com", "Different1!", "data_subject"); err != nil {
		t.Fatalf("duplicate register: %v", err)
	}
	second, err := store.FindByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail after duplicate: %v", err)
	}
	if second.PasswordHash != first.PasswordHash {
		t.Fatal("duplicate registration overwrote the original hash")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]struct {
		email, password, userType string
		want                      error
	}{
		"bad email": {"not-an-email", "Passw0rd!", "data_subject", ErrInvalidInput},
		"weak":      {"a@b.co", "weak", "data_subject", ErrWeakPassword},
		"bad type":  {"a@b.co", "Passw0rd!", "admin", ErrInvalidInput},
		"missing":   {"", "", "data_subject", ErrInvalidInput},
	}
	for name, tc := range cases {
		err := svc.Register(ctx, tc.email, tc.password, tc.userType)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", name, err, tc.want)
		}
	}
}

func TestLoginEnumerationSafety(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "known@example.com", "Passw0rd!", "data_subject"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, _, unknownErr := svc.Login(ctx, "unknown@example.com", "Passw0rd!")
	_, _, _, wrongErr := svc.Login(ctx, "known@example.com", "WrongPass1!")
	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v / %v", unknownErr, wrongErr)
	}

	token, expiresAt, user, err := svc.Login(ctx, "Known@Example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || expiresAt.IsZero() || user.Role != RoleDataSubject {
		t.Fatalf("unexpected login result: token=%q user=%+v", token, user)
	}
	claims, ok := svc.Tokens().Verify(token)
	if !ok || claims.Subject != user.ID {
		t.Fatalf("issued token does not verify for user %s", user.ID)
	}
}

func TestChangePassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.Provision(ctx, "rep@example.com", "TempPass1!", RoleEmployee, "")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !user.PasswordTemporary {
		t.Fatal("provisioned user should carry a temporary password")
	}

	if err := svc.ChangePassword(ctx, user.ID, "WrongTemp1!", "NewPass1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "TempPass1!", "TempPass1!"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reuse: got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "TempPass1!", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak replacement: got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "TempPass1!", "NewPass1!"); err != nil {
		t.Fatalf("change: %v", err)
	}

	updated, err := store.Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if updated.PasswordTemporary {
		t.Fatal("temporary flag should be cleared")
	}
	if !VerifyPassword("NewPass1!", updated.PasswordHash) {
		t.Fatal("new password does not verify")
	}
}

func TestProvisionRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Provision(ctx, "rep@example.com", "TempPass1!", RoleSuperAdmin, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("super_admin provisioning must be rejected: %v", err)
	}
	if _, err := svc.Provision(ctx, "rep@example.com", "TempPass1!", RoleAdmin, "c-1"); err != nil {
		t.Fatalf("provision admin: %v", err)
	}
	if _, err := svc.Provision(ctx, "rep@example.com", "Other1!x", RoleEmployee, "c-1"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate provisioning must surface the conflict: %v", err)
	}
}

func TestBootstrapCreatesInitialSuperAdmin(t *testing.T) {
	store := newMemUserStore()
	ctx := context.Background()

	if err := Bootstrap(ctx, store, "Root@Example.com", "RootPass1!"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	root, err := store.FindByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if root.Role != RoleSuperAdmin {
		t.Fatalf("role = %s, want super_admin", root.Role)
	}
	if !root.PasswordTemporary {
		t.Fatal("bootstrap password must be temporary")
	}
	if !VerifyPassword("RootPass1!", root.PasswordHash) {
		t.Fatal("bootstrap password does not verify")
	}

	// Re-running leaves the existing account untouched.
	if err := Bootstrap(ctx, store, "root@example.com", "Another1!pass"); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	again, err := store.FindByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("FindByEmail after rerun: %v", err)
	}
	if again.PasswordHash != root.PasswordHash {
		t.Fatal("rerun must not overwrite the stored credential")
	}
}

func TestBootstrapValidation(t *testing.T) {
	store := newMemUserStore()
	ctx := context.Background()

	if err := Bootstrap(ctx, store, "not-an-email", "RootPass1!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed email: %v", err)
	}
	if err := Bootstrap(ctx, store, "root@example.com", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: %v", err)
	}
	if len(store.users) != 0 {
		t.Fatalf("no account should exist after rejected bootstraps, got %d", len(store.users))
	}
}
