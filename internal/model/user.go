package model

import "time"

// Role separates test takers from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a registered account. Test takers fill in the profile at
// registration; admins are created from the CLI.
type User struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	ZipCode      string     `json:"zip_code,omitempty"`
	Country      string     `json:"country,omitempty"`
	Education    string     `json:"education,omitempty"`
	Institution  string     `json:"institution,omitempty"`
	FieldOfStudy string     `json:"field_of_study,omitempty"`
	Experience   string     `json:"experience,omitempty"`
	HearAboutUs  string     `json:"hear_about_us,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RegisterRequest is the payload for self-registration.
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email,max=255"`
	Password     string `json:"password" binding:"required,min=8,max=128"`
	FirstName    string `json:"first_name" binding:"required,min=1,max=100"`
	LastName     string `json:"last_name" binding:"required,min=1,max=100"`
	Phone        string `json:"phone" binding:"omitempty,max=30"`
	DateOfBirth  string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender       string `json:"gender" binding:"omitempty,oneof=male female other prefer_not_to_say"`
	Address      string `json:"address" binding:"omitempty,max=255"`
	City         string `json:"city" binding:"omitempty,max=100"`
	State        string `json:"state" binding:"omitempty,max=100"`
	ZipCode      string `json:"zip_code" binding:"omitempty,max=20"`
	Country      string `json:"country" binding:"omitempty,max=100"`
	Education    string `json:"education" binding:"omitempty,max=100"`
	Institution  string `json:"institution" binding:"omitempty,max=200"`
	FieldOfStudy string `json:"field_of_study" binding:"omitempty,max=200"`
	Experience   string `json:"experience" binding:"omitempty,max=100"`
	HearAboutUs  string `json:"hear_about_us" binding:"omitempty,max=200"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=1,max=128"`
}

// LoginResponse is returned after a successful login or registration.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Profile is the signed-in user's view of their account.
type Profile struct {
	User
	HasCompletedTest bool `json:"has_completed_test"`
}
