package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "amparo"
	defaultTokenTTL = 24 * time.Hour

	// minSecretLength is enforced when the service runs in production mode.
	// A shorter HMAC secret undermines the token integrity guarantee.
	minSecretLength = 32

	bearerPrefix = "Bearer "
)

// Claims carries the identity facts embedded in a session token.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the claim.
func (c *Claims) UserID() string { return c.Subject }

// RevocationCheck reports whether a syntactically valid token has been
// revoked out of band. The current deployment keeps no revocation list, so
// a logged-out token stays valid until natural expiry; the hook exists so a
// list can be plugged in without touching Verify call sites.
type RevocationCheck func(claims *Claims) bool

// TokenService issues, verifies, and refreshes signed session tokens.
// The signing secret is injected at construction so business logic never
// reads process environment.
type TokenService struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
	revoked RevocationCheck
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithTokenTTL overrides the default 24h token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRevocationCheck plugs in an out-of-band revocation list.
func WithRevocationCheck(fn RevocationCheck) TokenOption {
	return func(s *TokenService) { s.revoked = fn }
}

// NewTokenService constructs a TokenService. It fails fast when the secret
// is absent, or shorter than 32 bytes while production hardening is on.
func NewTokenService(secret string, production bool, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	if production && len(secret) < minSecretLength {
		return nil, errors.New("auth: signing secret must be at least 32 bytes in production")
	}
	svc := &TokenService{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs a token for the given identity with a fresh expiry.
func (s *TokenService) Issue(userID, email string, role Role) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: userID is required")
	}
	if !role.Valid() {
		return "", time.Time{}, errors.New("auth: unknown role")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Email: strings.TrimSpace(strings.ToLower(email)),
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify returns the embedded claims when the signature validates and the
// token has not expired. Any failure (tampering, wrong secret, expiry,
// garbage input) yields ok=false with no partial claims; verification
// failure is a normal outcome, not an error.
func (s *TokenService) Verify(token string) (*Claims, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, false
	}
	if claims.Issuer != s.issuer {
		return nil, false
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, false
	}
	if !claims.Role.Valid() {
		return nil, false
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, false
	}
	if s.revoked != nil && s.revoked(claims) {
		return nil, false
	}
	return claims, true
}

// Refresh verifies the token and, if valid, issues a new one carrying the
// same identity fields with a fresh expiry. An invalid or expired token is
// never extended.
func (s *TokenService) Refresh(token string) (string, time.Time, bool) {
	claims, ok := s.Verify(token)
	if !ok {
		return "", time.Time{}, false
	}
	fresh, expiresAt, err := s.Issue(claims.Subject, claims.Email, claims.Role)
	if err != nil {
		return "", time.Time{}, false
	}
	return fresh, expiresAt, true
}

// ExtractBearer parses an Authorization header value. Only an exact
// "Bearer " prefix with a non-empty remainder yields a token.
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
