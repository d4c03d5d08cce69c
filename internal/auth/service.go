package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

const defaultAccessTTL = 8 * time.Hour

// Roles recognised by the system.
const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCashier    = "cashier"
)

// User represents a safe subset of the user model returned to clients.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, string, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	User        User      `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service coordinates authentication and account management.
type Service struct {
	store     Store
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	issuer    string
	audience  string
}

// Config configures the auth service.
type Config struct {
	Store          Store
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-apotek"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "apotek-frontend"
	}
	return &Service{
		store:     cfg.Store,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		issuer:    issuer,
		audience:  audience,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ValidRole reports whether role is one of the recognised role names.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePharmacist, RoleCashier:
		return true
	}
	return false
}

// Register creates a new user account with the supplied credentials.
func (s *Service) Register(ctx context.Context, username, password, role string) (User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "username is required", http.StatusBadRequest, nil)
	}
	if len(password) < 8 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}
	if role == "" {
		role = RoleCashier
	}
	if !ValidRole(role) {
		return User{}, common.NewAppError("VALIDATION_ERROR", "unknown role", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, name, hash, role)
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// Login verifies credentials and issues a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	name := strings.TrimSpace(username)
	if name == "" || password == "" {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	}

	user, hash, err := s.store.GetUserByUsername(ctx, name)
	if err != nil {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil || !ok {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	}

	token, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return LoginResult{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID int64) (User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return user, nil
}

// ParseAccessToken validates an access token and returns the subject and role.
func (s *Service) ParseAccessToken(token string) (int64, string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return 0, "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return 0, "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != s.signer {
		return 0, "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed,
		jwt.WithKey(algorithm, s.secret),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return 0, "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	userID, err := strconv.ParseInt(parsed.Subject(), 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	role, _ := parsed.Get("role")
	roleStr, _ := role.(string)
	if !ValidRole(roleStr) {
		return 0, "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, nil)
	}
	return userID, roleStr, nil
}

func (s *Service) signAccessToken(user User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(strconv.FormatInt(user.ID, 10)).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("role", user.Role).
		Claim("username", user.Username).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
