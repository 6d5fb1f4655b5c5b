package account

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/jifunze/core"
)

// Roles
const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

type Role string

func (r Role) Valid() bool { return r == RoleStudent || r == RoleParent }

// Principal is an authenticated actor: either a *Student or a *Parent.
type Principal interface {
	core.LogIdentity

	PrincipalID() int
	PrincipalEmail() string
	PrincipalRole() Role
	CheckPassword(pwd string) error
}

var (
	_ Principal = (*Student)(nil)
	_ Principal = (*Parent)(nil)
)

type Student struct {
	ID           int         `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	Age          int         `json:"age" db:"age"`
	Grade        int         `json:"grade" db:"grade"`
	ParentID     int         `json:"parent_id" db:"parent_id"`
	Avatar       null.String `json:"avatar" db:"avatar"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s *Student) PrincipalID() int       { return s.ID }
func (s *Student) PrincipalEmail() string { return s.Email }
func (s *Student) PrincipalRole() Role    { return RoleStudent }
func (s *Student) LogID() string          { return string(RoleStudent) + ":" + strconv.Itoa(s.ID) }
func (s *Student) LogName() string        { return s.Name }
func (s *Student) LogEmail() string       { return s.Email }

type Parent struct {
	ID           int         `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	Avatar       null.String `json:"avatar" db:"avatar"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (p *Parent) SetPassword(pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Parent) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p *Parent) PrincipalID() int       { return p.ID }
func (p *Parent) PrincipalEmail() string { return p.Email }
func (p *Parent) PrincipalRole() Role    { return RoleParent }
func (p *Parent) LogID() string          { return string(RoleParent) + ":" + strconv.Itoa(p.ID) }
func (p *Parent) LogName() string        { return p.Name }
func (p *Parent) LogEmail() string       { return p.Email }

func hashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

// Registration contains information needed to register a new Student and ensure its Parent.
type Registration struct {
	Name        string `json:"name" validate:"required,notblank"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Age         int    `json:"age" validate:"required,pupil_age"`
	Grade       int    `json:"grade" validate:"required,pupil_grade"`
	ParentName  string `json:"parentName" validate:"required,notblank"`
	ParentEmail string `json:"parentEmail" validate:"required,email"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.ParentName = core.CleanString(r.ParentName)
	r.ParentEmail = core.CleanString(r.ParentEmail, true /* lower */)
	return validate.Struct(r)
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=student parent"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	c.Role = Role(core.CleanString(string(c.Role), true /* lower */))
	return validate.Struct(c)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left untouched.
type UpdateStudent struct {
	Name   *string `json:"name" validate:"omitempty,notblank"`
	Age    *int    `json:"age" validate:"omitempty,pupil_age"`
	Grade  *int    `json:"grade" validate:"omitempty,pupil_grade"`
	Avatar *string `json:"avatar"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.Name != nil {
		name := core.CleanString(*us.Name)
		us.Name = &name
	}
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s *Student) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Age != nil {
		s.Age = *us.Age
	}
	if us.Grade != nil {
		s.Grade = *us.Grade
	}
	if us.Avatar != nil {
		s.Avatar = null.NewString(*us.Avatar, *us.Avatar != "")
	}
}

type UpdateParent struct {
	Name   *string `json:"name" validate:"omitempty,notblank"`
	Avatar *string `json:"avatar"`
}

func (up *UpdateParent) Validate(validate *validator.Validate) error {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	return validate.Struct(up)
}

func (up UpdateParent) apply(p *Parent) {
	if up.Name != nil {
		p.Name = *up.Name
	}
	if up.Avatar != nil {
		p.Avatar = null.NewString(*up.Avatar, *up.Avatar != "")
	}
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

type ResetPassword struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	rp.OTP = core.CleanString(rp.OTP)
	return validate.Struct(rp)
}
