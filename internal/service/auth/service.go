// Package auth registers users, verifies credentials and issues bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/bcrypt"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/config"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const minPasswordLength = 8

var errInvalidCredentials = apperr.Unauthenticated("invalid credentials")

// UserRepository interface for user operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AdventurerRepository interface for the profile created at registration.
type AdventurerRepository interface {
	Create(ctx context.Context, profile *models.AdventurerProfile) error
}

// Throttle counts failed logins. Get returns "" for unknown keys.
type Throttle interface {
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email       string      `json:"email" binding:"required,email,max=255"`
	Username    string      `json:"username" binding:"required,min=3,max=50"`
	DisplayName string      `json:"displayName" binding:"max=100"`
	Password    string      `json:"password" binding:"required,min=8,max=72"`
	Role        models.Role `json:"role" binding:"required,oneof=ADVENTURER NPC GUILD_MASTER"`
}

// LoginInput carries credentials. Identifier may be an email or a username;
// Email and Username are accepted as aliases.
type LoginInput struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Claims are the JWT claims issued by the service.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service handles registration, login and token verification.
type Service struct {
	users       UserRepository
	adventurers AdventurerRepository
	tx          store.Transactor
	throttle    Throttle
	userCache   *lru.Cache
	cfg         config.AuthConfig
	log         *logger.Logger
	now         func() time.Time

	// dummyHash is compared when the identifier matches no user, so unknown
	// and known identifiers cost the same bcrypt work.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

// NewService creates a new auth service. throttle may be nil, which disables login throttling.
func NewService(stores store.Stores, throttle Throttle, cfg config.AuthConfig, log *logger.Logger) (*Service, error) {
	return NewServiceWithInterfaces(stores.Users, stores.Adventurers, stores.Tx, throttle, cfg, log)
}

// NewServiceWithInterfaces creates a new auth service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	users UserRepository,
	adventurers AdventurerRepository,
	tx store.Transactor,
	throttle Throttle,
	cfg config.AuthConfig,
	log *logger.Logger,
) (*Service, error) {
	size := cfg.UserCacheSize
	if size <= 0 {
		size = 1024
	}
	userCache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("tavern-unknown-user"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hashing: %w", err)
	}

	return &Service{
		users:       users,
		adventurers: adventurers,
		tx:          tx,
		throttle:    throttle,
		userCache:   userCache,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		dummyHash:   dummyHash,
		compare:     bcrypt.CompareHashAndPassword,
	}, nil
}

// Register creates a user. Adventurers also get an empty profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	var issues []apperr.Issue
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		issues = append(issues, apperr.Issue{Field: "email", Message: "must be a valid email address"})
	}
	if len(in.Username) < 3 {
		issues = append(issues, apperr.Issue{Field: "username", Message: "must be at least 3 characters"})
	}
	if len(in.Password) < minPasswordLength {
		issues = append(issues, apperr.Issue{Field: "password", Message: "must be at least 8 characters"})
	}
	if !in.Role.Valid() {
		issues = append(issues, apperr.Issue{Field: "role", Message: "must be one of ADVENTURER, NPC, GUILD_MASTER"})
	}
	if len(issues) > 0 {
		return nil, apperr.Validation("invalid registration", issues...)
	}
	if in.Role == models.RoleGuildMaster && !s.cfg.AllowGuildMasterSignup {
		return nil, apperr.Forbidden("guild master registration is disabled")
	}

	if err := s.ensureAvailable(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		Role:         in.Role,
		PasswordHash: string(hash),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if user.Role != models.RoleAdventurer {
			return nil
		}
		return s.adventurers.Create(ctx, &models.AdventurerProfile{
			UserID:     user.ID,
			Rank:       models.RankF,
			Attributes: models.DefaultAttributes(),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("email or username already registered")
		}
		return nil, apperr.Internal("failed to register user", err)
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Str("role", string(user.Role)).
		Msg("User registered")

	return user, nil
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperr.Conflict("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal("failed to check email", err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperr.Conflict("username already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal("failed to check username", err)
	}
	return nil
}

// Login verifies credentials and issues a token. Every failure returns the same
// unauthenticated error; too many failures for one identifier are rate limited.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	identifier := strings.ToLower(strings.TrimSpace(firstNonEmpty(in.Identifier, in.Email, in.Username)))
	if identifier == "" || in.Password == "" {
		prommetrics.RecordLoginAttempt("failure")
		return nil, errInvalidCredentials
	}

	if s.throttled(ctx, identifier) {
		prommetrics.RecordLoginAttempt("throttled")
		s.log.Warn().Str("identifier", identifier).Msg("Login throttled")
		return nil, apperr.RateLimited("too many failed login attempts, try again later")
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Internal("failed to load user", err)
		}
		_ = s.compare(s.dummyHash, []byte(in.Password))
		return nil, s.loginFailed(ctx, identifier)
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, s.loginFailed(ctx, identifier)
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Del(ctx, throttleKey(identifier)); err != nil {
			s.log.Warn().Err(err).Msg("Failed to reset login attempts")
		}
	}

	prommetrics.RecordLoginAttempt("success")
	s.log.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("User logged in")

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, identifier)
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *Service) throttled(ctx context.Context, identifier string) bool {
	if s.throttle == nil || s.cfg.MaxLoginAttempts <= 0 {
		return false
	}
	raw, err := s.throttle.Get(ctx, throttleKey(identifier))
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read login attempts")
		return false
	}
	if raw == "" {
		return false
	}
	attempts, err := strconv.Atoi(raw)
	return err == nil && attempts >= s.cfg.MaxLoginAttempts
}

func (s *Service) loginFailed(ctx context.Context, identifier string) error {
	prommetrics.RecordLoginAttempt("failure")
	s.log.Debug().Str("identifier", identifier).Msg("Login failed")

	if s.throttle == nil || s.cfg.MaxLoginAttempts <= 0 {
		return errInvalidCredentials
	}

	key := throttleKey(identifier)
	attempts, err := s.throttle.Incr(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count login attempt")
		return errInvalidCredentials
	}
	if attempts == 1 {
		if err := s.throttle.Expire(ctx, key, s.cfg.LoginWindowDuration()); err != nil {
			s.log.Warn().Err(err).Msg("Failed to set login attempt window")
		}
	}
	return errInvalidCredentials
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenDuration())

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Authenticate verifies a bearer token and returns its user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, opts...)
	if err != nil || claims.Subject == "" {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}

	user, err := s.User(ctx, claims.Subject)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("invalid or expired token")
		}
		return nil, err
	}
	if user.Role != claims.Role {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}
	return user, nil
}

// User returns a user by id, served from the in-process cache when possible.
// Users are never mutated after registration, so entries never go stale.
func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	if cached, ok := s.userCache.Get(id); ok {
		user := cached.(models.User)
		return &user, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	s.userCache.Add(id, *user)
	return user, nil
}

func throttleKey(identifier string) string {
	return "tavern:auth:failed:" + identifier
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
