package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/JeffCSZ/vms/internal/model"
	"github.com/JeffCSZ/vms/internal/store"
)

var (
	// ErrDuplicateIdentity means the email is already registered.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrWeakCredential means the password failed the strength policy.
	ErrWeakCredential = errors.New("password does not meet the policy: at least 8 characters with a letter and a digit")
	// ErrIdentityNotFound means no identity exists for the given email.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidCredential means the password check failed.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrAccountLocked means too many consecutive failed logins.
	ErrAccountLocked = errors.New("account locked after repeated failed logins")
	// ErrTokenExpired means the token was well-formed but past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid means the token was malformed, forged, or its
	// signature did not verify.
	ErrTokenInvalid = errors.New("token invalid")
)

// RoleMismatchError is returned when a login names an expected role that
// differs from the one stored at registration. Both roles are carried so the
// caller can redirect the user to the correct client.
type RoleMismatchError struct {
	Stored   model.Role
	Expected model.Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("this account is registered as a %s; please log in from the %s app", e.Stored, e.Expected)
}

// Config holds the credential service settings. The signing key is
// process-wide and read-only after startup; there is no server-side
// revocation list, so short token expiry is the only defense against a
// leaked token.
type Config struct {
	Secret          string
	TokenExpiry     time.Duration
	MaxFailedLogins int
	LockoutDuration time.Duration
	Issuer          string
	Audience        string
}

// DefaultConfig returns production defaults; the secret must still be set.
func DefaultConfig() Config {
	return Config{
		TokenExpiry:     60 * time.Minute,
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
		Issuer:          "vms",
		Audience:        "vms-clients",
	}
}

// Token is a signed bearer credential with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims is the token payload: identity, role, and the optional issuer
// profile fields.
type Claims struct {
	DisplayName string     `json:"name"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	UnitNo      string     `json:"unit_no,omitempty"`
	StreetNo    string     `json:"street_no,omitempty"`
	jwt.RegisteredClaims
}

// IdentityID returns the identity the token was issued for.
func (c *Claims) IdentityID() string { return c.Subject }

// AuthService issues and verifies bearer tokens and enforces the
// registration and login rules.
type AuthService struct {
	store  *store.Store
	cfg    Config
	secret []byte
}

// NewAuthService creates the credential service.
func NewAuthService(st *store.Store, cfg Config) *AuthService {
	return &AuthService{store: st, cfg: cfg, secret: []byte(cfg.Secret)}
}

// Register creates a new identity and returns it with a freshly issued
// token. The role is fixed here forever. Profile fields (unit/street) only
// make sense for issuers and are discarded for verifiers.
func (s *AuthService) Register(ctx context.Context, email, password string, role model.Role, unitNo, streetNo string) (*model.Identity, *Token, error) {
	if !role.Valid() {
		return nil, nil, fmt.Errorf("invalid role %q", role)
	}
	if err := checkPasswordPolicy(password); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	if role != model.RoleIssuer {
		unitNo, streetNo = "", ""
	}

	identity := &model.Identity{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayNameFromEmail(email),
		Role:         role,
		UnitNo:       unitNo,
		StreetNo:     streetNo,
	}
	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, nil, ErrDuplicateIdentity
		}
		return nil, nil, err
	}

	token, err := s.issueToken(identity)
	if err != nil {
		return nil, nil, err
	}
	return identity, token, nil
}

// Authenticate checks the password for an identity and issues a token. When
// expectedRole is non-empty, it must match the role stored at registration.
// Repeated failures lock the account for the configured duration.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, expectedRole model.Role) (*model.Identity, *Token, error) {
	identity, err := s.store.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, err
	}

	now := time.Now()
	if identity.Locked(now) {
		return nil, nil, ErrAccountLocked
	}

	// Role check happens before the password check so a user on the wrong
	// app gets redirected instead of burning failed attempts.
	if expectedRole != "" && expectedRole != identity.Role {
		return nil, nil, &RoleMismatchError{Stored: identity.Role, Expected: expectedRole}
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		failed := identity.FailedLogins + 1
		if failed >= s.cfg.MaxFailedLogins {
			until := now.Add(s.cfg.LockoutDuration).UTC()
			if err := s.store.UpdateLoginState(ctx, identity.ID, 0, &until); err != nil {
				return nil, nil, err
			}
			return nil, nil, ErrAccountLocked
		}
		if err := s.store.UpdateLoginState(ctx, identity.ID, failed, nil); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrInvalidCredential
	}

	// Successful login clears any failure history.
	if identity.FailedLogins > 0 || identity.LockedUntil != nil {
		if err := s.store.UpdateLoginState(ctx, identity.ID, 0, nil); err != nil {
			return nil, nil, err
		}
	}

	token, err := s.issueToken(identity)
	if err != nil {
		return nil, nil, err
	}
	return identity, token, nil
}

// Verify parses and validates a bearer token. It is pure: signature and
// expiry checks only, no store access and no side effects.
func (s *AuthService) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || !claims.Role.Valid() || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *AuthService) issueToken(identity *model.Identity) (*Token, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenExpiry)

	claims := Claims{
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		Role:        identity.Role,
		UnitNo:      identity.UnitNo,
		StreetNo:    identity.StreetNo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// checkPasswordPolicy enforces the minimum credential strength: at least 8
// characters containing a letter and a digit.
func checkPasswordPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakCredential
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakCredential
	}
	return nil
}

// displayNameFromEmail derives a default display name from the email local
// part, mirroring how accounts were named in the legacy system.
func displayNameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
