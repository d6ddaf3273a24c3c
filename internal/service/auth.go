package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var (
	ErrAdminAlreadyExists = errors.New("admin already exists")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoToken            = errors.New("no token found")
	ErrInvalidToken       = errors.New("invalid token")
)

const RoleAdmin = "admin"

// dummyHash is compared against when the username is unknown so both failure paths cost
// one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), bcrypt.DefaultCost)

type adminClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	adminRepo repository.AdminRepository
	jwtSecret []byte
	jwtExpiry time.Duration
	now       func() time.Time
}

func NewAuthService(adminRepo repository.AdminRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{adminRepo: adminRepo, jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry, now: time.Now}
}

func (s *AuthService) Expiry() time.Duration { return s.jwtExpiry }

// Login checks the credentials and issues a signed session token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Admin, string, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, "", fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.generateToken(admin)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return admin, token, nil
}

// Verify validates signature and expiry of a session token.
func (s *AuthService) Verify(token string) (*model.AdminClaims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &model.AdminClaims{ID: id, Username: claims.Username, Role: claims.Role}, nil
}

// Session resolves a session token to the admin account it was issued for. Tokens of
// deleted admins are rejected.
func (s *AuthService) Session(ctx context.Context, token string) (*model.Admin, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	admin, err := s.adminRepo.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		return nil, ErrInvalidToken
	}
	return admin, nil
}

// CreateAdmin provisions an admin account. Used by the seed command, never over HTTP.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, role string) (*model.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username required and password must be at least 8 characters", ErrValidation)
	}
	if role == "" {
		role = RoleAdmin
	}

	existing, err := s.adminRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if existing != nil {
		return nil, ErrAdminAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := &model.Admin{Username: username, PasswordHash: string(hashed), Role: role}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

// ResetPassword replaces the password of an existing admin.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) (*model.Admin, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	admin, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.adminRepo.UpdatePassword(ctx, admin.ID, string(hashed)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("update password: %w", err)
	}
	admin.PasswordHash = string(hashed)
	return admin, nil
}

func (s *AuthService) generateToken(admin *model.Admin) (string, error) {
	now := s.now()
	claims := adminClaims{
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
