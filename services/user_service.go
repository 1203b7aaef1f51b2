package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agroadvisor/community/models"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/utils"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UserService issues and revokes bearer tokens for local accounts.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if l := len([]rune(username)); l < 3 || l > 64 {
		return nil, invalid("Username must be 3-64 characters")
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, invalid("Password must be %d-%d characters", utils.MinPasswordLength, utils.MaxPasswordBytes)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Logout revokes token until its natural expiry.
func (s *UserService) Logout(ctx context.Context, token string, claims *utils.Claims) error {
	expiresAt := time.Now().Add(utils.TokenTTL())
	if claims != nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return utils.BlacklistToken(ctx, token, expiresAt)
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, err := utils.GenerateToken(user.ID, user.Username, utils.TokenTTL())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
