package people

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/mainino/core"
)

// Role identifies the portal a caller operates from. Role-based behavior
// differences are dispatched on this closed set, never on parallel code paths.
type Role string

const (
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Caller is the authenticated identity attached to every portal request.
// It is threaded through service calls explicitly; there is no ambient
// request state.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type Parent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	CIN          string    `json:"cin,omitempty"`
	Address      string    `json:"address,omitempty"`
	Staff        bool      `json:"staff,omitempty"` // grants admin portal access
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login,omitempty"`
}

func (p *Parent) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p Parent) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

type Student struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	SchoolLevel  string    `json:"school_level,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login,omitempty"`
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

type Teacher struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active"`
}

func hashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

// QueryFilter applies AND operation on available fields.
// Search does a case-insensitive match on one of Student.Name, Student.Surname,
// Student.Username or Student.Email.
type QueryFilter struct {
	Search      string           `json:"search"`
	IsActive    *bool            `json:"is_active"`
	CreatedFrom time.Time        `json:"created_from"`
	CreatedTo   time.Time        `json:"created_to"`
	Orderings   []core.DBOrdering `json:"-"`
}

type NewParent struct {
	Name     string `json:"name" validate:"required"`
	Surname  string `json:"surname" validate:"required"`
	Username string `json:"username" validate:"required,alphanum_"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	CIN      string `json:"cin"`
	Address  string `json:"address"`
	Password string `json:"password" validate:"required"`
	Staff    bool   `json:"staff"`
}

type NewStudent struct {
	ParentID    string `json:"parent_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Surname     string `json:"surname" validate:"required"`
	Username    string `json:"username" validate:"required,alphanum_"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	SchoolLevel string `json:"school_level"`
}

type UpdateStudent struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	SchoolLevel string `json:"school_level"`
	IsActive    *bool  `json:"is_active"`
}

type ResetParentPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}
