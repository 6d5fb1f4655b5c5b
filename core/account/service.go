package account

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("a student with this email already exists")
	ErrEmailNotRegistered = errors.New("Email not registered.")
	ErrIncorrectPassword  = errors.New("Incorrect password.")
	ErrInvalidRole        = errors.New("invalid role")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		StudentEmailExists(ctx context.Context, email string) (bool, error)
		// EnsureParent inserts the parent unless one with the same email exists, then returns the stored row.
		// Concurrent calls with the same email converge on a single row.
		EnsureParent(ctx context.Context, parent Parent) (Parent, error)
		// CreateStudent returns ErrEmailExists when the email is taken.
		CreateStudent(ctx context.Context, student Student) (Student, error)
		// RegisterStudent ensures the parent and creates the student bound to it, atomically:
		// when the student is rejected (ErrEmailExists) no parent is created.
		RegisterStudent(ctx context.Context, parent Parent, student Student) (Student, error)
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		GetParentByID(ctx context.Context, id int) (Parent, error)
		GetParentByEmail(ctx context.Context, email string) (Parent, error)
		QueryStudentsByParent(ctx context.Context, parentID int) ([]Student, error)
		UpdateStudent(ctx context.Context, student Student) (Student, error)
		UpdateParent(ctx context.Context, parent Parent) (Parent, error)
		SetStudentPassword(ctx context.Context, id int, hash []byte) error
		SetParentPassword(ctx context.Context, id int, hash []byte) error
	}

	// finder loads the principal of one role.
	finder func(ctx context.Context, repo Repository, key string) (Principal, error)

	Service struct {
		repo    Repository
		kv      core.KeyValueStore
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var finders = map[Role]finder{
	RoleStudent: func(ctx context.Context, repo Repository, email string) (Principal, error) {
		s, err := repo.GetStudentByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return &s, nil
	},
	RoleParent: func(ctx context.Context, repo Repository, email string) (Principal, error) {
		p, err := repo.GetParentByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return &p, nil
	},
}

func NewService(repo Repository, kv core.KeyValueStore, mailSvc core.EmailService, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(kv, "kv"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:    repo,
		kv:      kv,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// Register creates the Student described by reg and ensures its Parent exists.
// reg must have been validated.
func (svc *Service) Register(ctx context.Context, reg Registration) (Student, error) {
	exists, err := svc.repo.StudentEmailExists(ctx, reg.Email)
	if err != nil {
		return Student{}, errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return Student{}, emailExistsError()
	}

	now := NowFunc().UTC()
	student := Student{
		Name:      reg.Name,
		Email:     reg.Email,
		Age:       reg.Age,
		Grade:     reg.Grade,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = student.SetPassword(reg.Password); err != nil {
		return Student{}, errors.Wrap(err, "hashing password")
	}

	// a new parent starts with the child's password
	parent := Parent{
		Name:         reg.ParentName,
		Email:        reg.ParentEmail,
		PasswordHash: student.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	student, err = svc.repo.RegisterStudent(ctx, parent, student)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Student{}, emailExistsError()
		}
		return Student{}, errors.Wrap(err, "creating student")
	}
	return student, nil
}

func emailExistsError() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

// Authenticate looks the principal up in the store selected by creds.Role and checks its password.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Principal, error) {
	find, ok := finders[creds.Role]
	if !ok {
		return nil, ErrInvalidRole
	}
	principal, err := find(ctx, svc.repo, creds.Email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, ErrEmailNotRegistered
		}
		return nil, errors.Wrapf(err, "finding %s by email", creds.Role)
	}
	if err = principal.CheckPassword(creds.Password); err != nil {
		return nil, ErrIncorrectPassword
	}
	return principal, nil
}

// GetPrincipal reloads the principal a session token was issued to.
func (svc *Service) GetPrincipal(ctx context.Context, role Role, id int) (Principal, error) {
	switch role {
	case RoleStudent:
		s, err := svc.repo.GetStudentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &s, nil
	case RoleParent:
		p, err := svc.repo.GetParentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, ErrInvalidRole
}

func (svc *Service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// GetStudentByEmail and GetParentByEmail clean the email before looking it up.
func (svc *Service) GetStudentByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.GetStudentByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetParentByEmail(ctx context.Context, email string) (Parent, error) {
	return svc.repo.GetParentByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Children returns the students owned by the parent.
func (svc *Service) Children(ctx context.Context, parentID int) ([]Student, error) {
	return svc.repo.QueryStudentsByParent(ctx, parentID)
}

// UpdateStudent applies us to the student. Only the student or its parent may do so.
func (svc *Service) UpdateStudent(ctx context.Context, actor Principal, studentID int, us UpdateStudent) (Student, error) {
	student, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound && actor.PrincipalRole() == RoleParent {
			// do not reveal which students exist
			return Student{}, core.ErrForbidden
		}
		return Student{}, err
	}
	if !canManage(actor, student) {
		return Student{}, core.ErrForbidden
	}

	us.apply(&student)
	student.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, student)
}

func canManage(actor Principal, student Student) bool {
	switch actor.PrincipalRole() {
	case RoleStudent:
		return actor.PrincipalID() == student.ID
	case RoleParent:
		return actor.PrincipalID() == student.ParentID
	}
	return false
}

func (svc *Service) UpdateParent(ctx context.Context, parentID int, up UpdateParent) (Parent, error) {
	parent, err := svc.repo.GetParentByID(ctx, parentID)
	if err != nil {
		return Parent{}, err
	}
	up.apply(&parent)
	parent.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateParent(ctx, parent)
}

// SetPassword overrides the password of the principal with the given role and email.
func (svc *Service) SetPassword(ctx context.Context, role Role, email, pwd string) error {
	hash, err := hashPassword(pwd)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}

	switch role {
	case RoleStudent:
		s, err := svc.GetStudentByEmail(ctx, email)
		if err != nil {
			return err
		}
		return svc.repo.SetStudentPassword(ctx, s.ID, hash)
	case RoleParent:
		p, err := svc.GetParentByEmail(ctx, email)
		if err != nil {
			return err
		}
		return svc.repo.SetParentPassword(ctx, p.ID, hash)
	}
	return ErrInvalidRole
}
