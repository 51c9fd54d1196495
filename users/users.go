package users

import (
	"fmt"
	"time"
	"unicode"

	"github.com/EXyrus/tabularasa/portal"
	"golang.org/x/crypto/bcrypt"
)

// RoleType is the secondary classifier of an identity within its portal.
// Guards only look at the portal; roles are for finer checks by consumers.
type RoleType string

const (
	RoleVendor   RoleType = "vendor"   // Platform administrator
	RoleEmployee RoleType = "employee" // Institution staff member
	RoleStudent  RoleType = "student"  // Student account
	RoleGuest    RoleType = "guest"    // Guardian or visitor
)

type User struct {
	ID            string         `json:"id,omitempty"`             // Unique identifier for the user
	Email         string         `json:"email,omitempty"`          // User's email address
	PasswordHash  string         `json:"-"`                        // Never serialised
	FirstName     string         `json:"first_name,omitempty"`     // First name of the user
	LastName      string         `json:"last_name,omitempty"`      // Last name of the user
	Phone         string         `json:"phone,omitempty"`          // Contact number
	Role          RoleType       `json:"role,omitempty"`           // Role within the portal
	AppType       portal.AppType `json:"app_type"`                 // Portal the account belongs to
	InstitutionID string         `json:"institution_id,omitempty"` // Set for institution accounts
	DateJoined    time.Time      `json:"date_joined,omitempty"`
	LastLogin     time.Time      `json:"last_login,omitempty"`
	Blocked       bool           `json:"blocked,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasRole reports whether the user carries one of the given roles.
func (u *User) HasRole(roles ...RoleType) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// BelongsTo reports whether the account may authenticate in the given portal and, for
// institution accounts, within the given institution.
func (u *User) BelongsTo(appType portal.AppType, institutionID string) bool {
	if u.AppType != appType {
		return false
	}
	if appType == portal.Institution && institutionID != "" {
		return u.InstitutionID == institutionID
	}
	return true
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
