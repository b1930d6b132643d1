package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/coa"
	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokensDisabled     = errors.New("jwt secret key is not configured")
)

const maxEmailLength = 256

type AuthService struct {
	store    store.Store
	cache    *cache.Cache
	accounts *AccountService
	template *coa.Template
	jwt      config.JWTConfig
	argon2   config.Argon2Config
	log      *logrus.Entry
	now      func() time.Time
}

// NewAuthService builds the onboarding service. When template is non-nil
// every registered company starts with that chart of accounts.
func NewAuthService(st store.Store, c *cache.Cache, accounts *AccountService, template *coa.Template, jwtCfg config.JWTConfig, argonCfg config.Argon2Config) *AuthService {
	return &AuthService{
		store:    st,
		cache:    c,
		accounts: accounts,
		template: template,
		jwt:      jwtCfg,
		argon2:   argonCfg,
		log:      logger.Component("auth"),
		now:      now,
	}
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"owner@acme.test"` // User email
	Password string `json:"password" validate:"required" example:"password123"`        // User password
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=256" example:"owner@acme.test"` // User email address
	Password    string `json:"password" validate:"required,min=8" example:"password123"`          // User password
	CompanyName string `json:"companyName" validate:"required,max=200" example:"Acme Ltd"`        // Name of the new company
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	AccessToken  string    `json:"accessToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	ExpiresAtUtc time.Time `json:"expiresAtUtc"`                                                   // Token expiry
}

// Claims carried by access tokens.
type Claims struct {
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// Register creates a company and its first user in one unit of work and
// signs them in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if !s.jwt.Enabled() {
		return nil, ErrTokensDisabled
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, invalid("password", "is required")
	}
	companyName, err := validateCompanyName(req.CompanyName)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.argon2)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ts := s.now()
	company := &models.Company{ID: uuid.NewString(), Name: companyName, CreatedAt: ts, UpdatedAt: ts}
	user := &models.AppUser{
		ID:           uuid.NewString(),
		CompanyID:    company.ID,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	// Keyed like Login so that a login for this email waits until the user
	// row is committed or rolled back.
	err = s.store.RunInTx(ctx, emailKey(email), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertCompany(ctx, company); err != nil {
			return err
		}
		err := tx.InsertUser(ctx, user)
		if errors.Is(err, store.ErrDuplicate) {
			return &ConflictError{Message: "Email Already Exists"}
		}
		if err != nil {
			return err
		}
		if s.template != nil {
			if _, err := s.accounts.applyTemplateTx(ctx, tx, company.ID, s.template); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("email", email).Warn("Registration failed")
		return nil, wrapStorage("register", err)
	}

	s.log.WithFields(logrus.Fields{"company_id": company.ID, "user_id": user.ID}).Info("Company registered")
	return s.issueToken(user)
}

// Login verifies the password of the user registered under email.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if !s.jwt.Enabled() {
		return nil, ErrTokensDisabled
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user *models.AppUser
	err := s.store.RunInTx(ctx, emailKey(email), func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUserByEmail(ctx, email)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		s.log.WithField("email", email).Info("Login for unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, wrapStorage("login", err)
	}

	if !verifyPassword(req.Password, user.PasswordHash, s.argon2) {
		s.log.WithField("user_id", user.ID).Info("Login with invalid password")
		return nil, ErrInvalidCredentials
	}

	s.log.WithField("user_id", user.ID).Info("Login successful")
	return s.issueToken(user)
}

// Logout revokes token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if err := s.cache.Blacklist(ctx, token, ttl); err != nil {
		return wrapStorage("logout", err)
	}
	return nil
}

// emailKey scopes the units of work that run before a company id is known.
func emailKey(email string) string {
	return "login:" + email
}

func normalizeEmail(email string) (string, error) {
	email, err := checkText("email", email, true, maxEmailLength)
	if err != nil {
		return "", err
	}
	if !strings.Contains(email, "@") {
		return "", invalid("email", "is not a valid email address")
	}
	return strings.ToLower(email), nil
}

func (s *AuthService) issueToken(user *models.AppUser) (*AuthResponse, error) {
	issued := s.now()
	expires := issued.Add(s.jwt.Expiry())

	claims := Claims{
		Email:     user.Email,
		CompanyID: user.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.jwt.Issuer,
			Audience:  jwt.ClaimStrings{s.jwt.Audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResponse{AccessToken: token, ExpiresAtUtc: expires.Truncate(time.Second)}, nil
}

// ParseToken verifies signature, issuer, audience and lifetime of an
// access token.
func ParseToken(cfg config.JWTConfig, tokenString string) (*Claims, error) {
	if !cfg.Enabled() {
		return nil, ErrTokensDisabled
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(cfg.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.CompanyID == "" {
		return nil, errors.New("token is missing subject or company")
	}
	return &claims, nil
}

func hashPassword(password string, cfg config.Argon2Config) (string, error) {
	salt := make([]byte, cfg.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Threads, cfg.KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string, cfg config.Argon2Config) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
