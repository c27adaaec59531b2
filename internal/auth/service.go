package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"amparo.org/internal/ids"
)

// Service is the credential gateway: it owns password policy enforcement and
// credential persistence, and delegates token work to the TokenService.
type Service struct {
	store  UserStore
	tokens *TokenService
	now    func() time.Time
}

// NewService constructs the credential gateway.
func NewService(store UserStore, tokens *TokenService) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	return &Service{store: store, tokens: tokens, now: time.Now}, nil
}

// Tokens exposes the token service for middleware wiring.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates a data-subject account. Registering an email that is
// already taken succeeds without touching the stored record, so the response
// gives no signal about account existence.
func (s *Service) Register(ctx context.Context, email, password, userType string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if !ValidEmail(email) {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	role, ok := ParseRole(userType)
	if !ok || role != RoleDataSubject {
		return fmt.Errorf("%w: unsupported user type", ErrInvalidInput)
	}
	if err := ValidateStrength(password); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleDataSubject,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Enumeration-safe: the first record stays untouched.
			return nil
		}
		return err
	}
	return nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password collapse into the same ErrInvalidCredentials so responses
// are byte-identical either way.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || !ValidEmail(email) {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

// ChangePassword verifies the current password, rejects reuse, enforces the
// strength policy on the replacement, and clears the temporary flag.
func (s *Service) ChangePassword(ctx context.Context, userID, current, replacement string) error {
	if userID == "" || current == "" || replacement == "" {
		return fmt.Errorf("%w: current and new passwords are required", ErrInvalidInput)
	}
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if current == replacement {
		return ErrPasswordReuse
	}
	if err := ValidateStrength(replacement); err != nil {
		return err
	}
	hash, err := HashPassword(replacement)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, user.ID, hash, false)
}

// Bootstrap creates the initial super-admin account for a fresh deployment.
// Registration only mints data subjects and provisioning requires an existing
// super admin, so this is the one path that stands up the first operator.
// The password is marked temporary to force a change on first login, and
// re-running against an existing account leaves it untouched.
func Bootstrap(ctx context.Context, store UserStore, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if !ValidEmail(email) {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if err := ValidateStrength(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user := &User{
		ID:                ids.New(),
		Email:             email,
		PasswordHash:      hash,
		Role:              RoleSuperAdmin,
		PasswordTemporary: true,
	}
	if err := store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// Provision creates a company representative account with a temporary
// password. This is a super-admin surface, so a duplicate email is reported
// rather than masked.
func (s *Service) Provision(ctx context.Context, email, tempPassword string, role Role, companyID string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if !role.In(CompanyRoles...) {
		return nil, fmt.Errorf("%w: role must be admin or employee", ErrInvalidInput)
	}
	if err := ValidateStrength(tempPassword); err != nil {
		return nil, err
	}
	hash, err := HashPassword(tempPassword)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:                ids.New(),
		Email:             email,
		PasswordHash:      hash,
		Role:              role,
		CompanyID:         strings.TrimSpace(companyID),
		PasswordTemporary: true,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
