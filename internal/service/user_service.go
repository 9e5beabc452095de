package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// User errors.
var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// UserStore is the user persistence used by UserService.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// CompletionChecker reports whether a user already has a stored result.
type CompletionChecker interface {
	HasSubmittedResult(ctx context.Context, userID int) (bool, error)
}

// UserService handles registration, login and profiles.
type UserService struct {
	users   UserStore
	results CompletionChecker
	auth    *AuthService
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, results CompletionChecker, auth *AuthService) *UserService {
	return &UserService{users: users, results: results, auth: auth}
}

// Register creates a test taker account and signs it in.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.LoginResponse, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         model.RoleUser,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Gender:       req.Gender,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      req.Country,
		Education:    req.Education,
		Institution:  req.Institution,
		FieldOfStudy: req.FieldOfStudy,
		Experience:   req.Experience,
		HearAboutUs:  req.HearAboutUs,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("parse date of birth: %w", err)
		}
		user.DateOfBirth = &dob
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.signIn(ctx, user)
}

// Login authenticates by email and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	return s.signIn(ctx, user)
}

// Profile returns the user with their completion state.
func (s *UserService) Profile(ctx context.Context, userID int) (*model.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	done, err := s.results.HasSubmittedResult(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	return &model.Profile{User: *user, HasCompletedTest: done}, nil
}

// CreateAdmin creates an administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		FirstName:    firstName,
		LastName:     lastName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return user, nil
}

func (s *UserService) signIn(ctx context.Context, user *model.User) (*model.LoginResponse, error) {
	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &model.LoginResponse{Token: token, User: *user}, nil
}
