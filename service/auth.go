// Package service implements the auth and application use cases on top of the store.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/logger"
	"cashadvance/store"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72

	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid or expired token"
)

type AuthConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type AuthService struct {
	st       *store.Store
	cfg      AuthConfig
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(st *store.Store, cfg AuthConfig, log *slog.Logger) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AuthService{st: st, cfg: cfg, log: log, validate: validator.New(), now: time.Now}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is what register and login hand back to the client.
type AuthResult struct {
	Token        string
	RefreshToken string
	User         *models.User
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := store.NormalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return nil, apperr.Validation("a valid email is required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, apperr.Validation("firstName and lastName are required")
	}
	if len(first) > 100 || len(last) > 100 {
		return nil, apperr.Validation("names must be at most 100 characters")
	}
	// pre-check existing (optimistic); the unique index catches races
	exists, err := s.st.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	u := &models.User{Email: email, PasswordHash: hash, FirstName: first, LastName: last}
	if err := s.st.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return s.issue(ctx, u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.st.UserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth(msgInvalidCredentials)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.Auth(msgInvalidCredentials)
	}
	return s.issue(ctx, u)
}

// CurrentUser resolves an access token to its user. Every failure looks the same to the caller.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.st.UserByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth(msgInvalidToken)
		}
		return nil, err
	}
	return u, nil
}

// IssueToken signs an access token carrying only the user id.
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"iat":    now.Unix(),
		"exp":    now.Add(s.cfg.AccessTTL).Unix(),
	})
	return token.SignedString(s.cfg.Secret)
}

// ParseToken verifies signature and expiry and returns the user id.
func (s *AuthService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return s.cfg.Secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", apperr.Auth(msgInvalidToken)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.Auth(msgInvalidToken)
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return "", apperr.Auth(msgInvalidToken)
	}
	return userID, nil
}

// Refresh exchanges a refresh token for a new access token and rotates the refresh token.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*AuthResult, error) {
	rt, err := s.st.RefreshTokenByHash(ctx, hashToken(raw))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid or expired refresh token")
		}
		return nil, err
	}
	if rt.Revoked || s.now().After(rt.ExpiresAt) {
		return nil, apperr.Auth("invalid or expired refresh token")
	}
	u, err := s.st.UserByID(ctx, rt.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid or expired refresh token")
		}
		return nil, err
	}
	revoked, err := s.st.RevokeRefreshToken(ctx, rt.ID)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, apperr.Auth("invalid or expired refresh token")
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	rt, err := s.st.RefreshTokenByHash(ctx, hashToken(raw))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	_, err = s.st.RevokeRefreshToken(ctx, rt.ID)
	return err
}

// SetPassword replaces the password of the user with the given email.
func (s *AuthService) SetPassword(ctx context.Context, email, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	u, err := s.st.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	return s.st.SetPasswordHash(ctx, u.ID, hash)
}

func (s *AuthService) issue(ctx context.Context, u *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}
	refresh, err := s.createRefreshToken(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Token: token, RefreshToken: refresh, User: u}, nil
}

// createRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func (s *AuthService) createRefreshToken(ctx context.Context, userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	if err := s.st.CreateRefreshToken(ctx, userID, hashToken(token), s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func checkPassword(pw string) error {
	if len(pw) < minPasswordLen {
		return apperr.Validation(fmt.Sprintf("password too short (min %d)", minPasswordLen))
	}
	if len(pw) > maxPasswordLen {
		return apperr.Validation(fmt.Sprintf("password too long (max %d bytes)", maxPasswordLen))
	}
	return nil
}
