package users

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Role controls access to the back office.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// PaymentStatus tracks the subscription payment of a user.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// User is a platform account. PasswordHash never leaves the process.
type User struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	PasswordHash       string        `json:"-"`
	Role               Role          `json:"role"`
	Active             bool          `json:"active"`
	SubscriptionTypeID string        `json:"subscriptionTypeId,omitempty"`
	PaymentStatus      PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentMethod      string        `json:"paymentMethod,omitempty"`
	PaymentDate        *time.Time    `json:"paymentDate,omitempty"`
	PaymentAmount      *float64      `json:"paymentAmount,omitempty"`
	ExpirationDate     *time.Time    `json:"expirationDate,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	DeletedAt          *time.Time    `json:"deletedAt,omitempty"`
	DeletedBy          string        `json:"deletedBy,omitempty"`
	DeletedReason      string        `json:"deletedReason,omitempty"`
}

// CreateUserRequest is the admin payload for a new account.
type CreateUserRequest struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	Password           string `json:"password" validate:"required,min=6,max=72"`
	Role               Role   `json:"role" validate:"oneof=user admin super_admin"`
	SubscriptionTypeID string `json:"subscriptionTypeId"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Role   Role
	Limit  int
	Offset int
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Normalize trims input, lowercases the email and defaults the role.
func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.SubscriptionTypeID = strings.TrimSpace(r.SubscriptionTypeID)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

// Validate checks the request after Normalize.
func (r *CreateUserRequest) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	return nil
}

var hashCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
