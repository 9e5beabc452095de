package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// LoginStore keeps the single valid token ID of each test taker.
type LoginStore interface {
	StoreLogin(ctx context.Context, userID int, jti string, ttl time.Duration) error
	LoginJTI(ctx context.Context, userID int) (string, error)
	DeleteLogin(ctx context.Context, userID int) error
}

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Role   model.Role `json:"role"`
	UserID int        `json:"user_id"`
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg    *config.Config
	logins LoginStore
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, logins LoginStore) *AuthService {
	return &AuthService{cfg: cfg, logins: logins}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken signs a JWT for user. Test takers are single-device: the
// new token ID replaces any earlier login, which stops validating.
func (s *AuthService) GenerateToken(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		Role:   user.Role,
		UserID: user.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if user.Role == model.RoleUser {
		if err := s.logins.StoreLogin(ctx, user.ID, jti, s.cfg.JWTExpiry); err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateUserSession checks that the token's JTI is the user's current login.
func (s *AuthService) ValidateUserSession(ctx context.Context, userID int, jti string) error {
	stored, err := s.logins.LoginJTI(ctx, userID)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if stored == "" || stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout invalidates the user's current login.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	return s.logins.DeleteLogin(ctx, userID)
}
