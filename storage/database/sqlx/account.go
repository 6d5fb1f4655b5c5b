package sqlxrepos

import (
	"context"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
)

const (
	studentColumns = "id, name, email, password_hash, age, grade, parent_id, avatar, created_at, updated_at"
	parentColumns  = "id, name, email, password_hash, avatar, created_at, updated_at"
)

type accountRepository struct {
	db core.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db core.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) StudentEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM students WHERE email = $1)", email)
	return exists, wrapErr(err, "checking student email")
}

func (repo accountRepository) EnsureParent(ctx context.Context, parent account.Parent) (account.Parent, error) {
	return ensureParent(ctx, repo.db, parent)
}

func (repo accountRepository) CreateStudent(ctx context.Context, student account.Student) (account.Student, error) {
	return createStudent(ctx, repo.db, student)
}

// RegisterStudent ensures the parent and inserts the student bound to it in one transaction,
// so a rejected student never leaves a new parent behind.
func (repo accountRepository) RegisterStudent(ctx context.Context, parent account.Parent, student account.Student) (_ account.Student, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return account.Student{}, wrapErr(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	parent, err = ensureParent(ctx, tx, parent)
	if err != nil {
		return account.Student{}, err
	}
	student.ParentID = parent.ID
	if student, err = createStudent(ctx, tx, student); err != nil {
		return account.Student{}, err
	}
	if err = tx.Commit(); err != nil {
		return account.Student{}, wrapErr(err, "committing transaction")
	}
	return student, nil
}

// ensureParent relies on the unique email index: the no-op update makes RETURNING yield the existing row.
func ensureParent(ctx context.Context, db core.DBExecutor, parent account.Parent) (account.Parent, error) {
	q := `
		INSERT INTO parents (name, email, password_hash, avatar, created_at, updated_at)
		VALUES (:name, :email, :password_hash, :avatar, :created_at, :updated_at)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + parentColumns
	q, args, err := db.BindNamed(q, parent)
	if err != nil {
		return account.Parent{}, wrapErr(err, "binding parent")
	}
	var p account.Parent
	if err = db.GetContext(ctx, &p, q, args...); err != nil {
		return account.Parent{}, wrapErr(err, "upserting parent")
	}
	return p, nil
}

func createStudent(ctx context.Context, db core.DBExecutor, student account.Student) (account.Student, error) {
	q := `
		INSERT INTO students (name, email, password_hash, age, grade, parent_id, avatar, created_at, updated_at)
		VALUES (:name, :email, :password_hash, :age, :grade, :parent_id, :avatar, :created_at, :updated_at)
		RETURNING ` + studentColumns
	q, args, err := db.BindNamed(q, student)
	if err != nil {
		return account.Student{}, wrapErr(err, "binding student")
	}
	var s account.Student
	if err = db.GetContext(ctx, &s, q, args...); err != nil {
		if pqCode(err) == uniqueViolation {
			return account.Student{}, account.ErrEmailExists
		}
		return account.Student{}, wrapErr(err, "inserting student")
	}
	return s, nil
}

func (repo accountRepository) getStudent(ctx context.Context, where string, arg interface{}) (account.Student, error) {
	var s account.Student
	err := repo.db.GetContext(ctx, &s, "SELECT "+studentColumns+" FROM students WHERE "+where, arg)
	if err != nil {
		return account.Student{}, trapNoRowsErr(err, account.ErrNotFound, "selecting student")
	}
	return s, nil
}

func (repo accountRepository) GetStudentByID(ctx context.Context, id int) (account.Student, error) {
	return repo.getStudent(ctx, "id = $1", id)
}

func (repo accountRepository) GetStudentByEmail(ctx context.Context, email string) (account.Student, error) {
	return repo.getStudent(ctx, "email = $1", email)
}

func (repo accountRepository) getParent(ctx context.Context, where string, arg interface{}) (account.Parent, error) {
	var p account.Parent
	err := repo.db.GetContext(ctx, &p, "SELECT "+parentColumns+" FROM parents WHERE "+where, arg)
	if err != nil {
		return account.Parent{}, trapNoRowsErr(err, account.ErrNotFound, "selecting parent")
	}
	return p, nil
}

func (repo accountRepository) GetParentByID(ctx context.Context, id int) (account.Parent, error) {
	return repo.getParent(ctx, "id = $1", id)
}

func (repo accountRepository) GetParentByEmail(ctx context.Context, email string) (account.Parent, error) {
	return repo.getParent(ctx, "email = $1", email)
}

func (repo accountRepository) QueryStudentsByParent(ctx context.Context, parentID int) ([]account.Student, error) {
	students := make([]account.Student, 0)
	err := repo.db.SelectContext(ctx, &students,
		"SELECT "+studentColumns+" FROM students WHERE parent_id = $1 ORDER BY id", parentID)
	return students, wrapErr(err, "selecting students by parent")
}

func (repo accountRepository) UpdateStudent(ctx context.Context, student account.Student) (account.Student, error) {
	q := `
		UPDATE students SET name = :name, age = :age, grade = :grade, avatar = :avatar, updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + studentColumns
	q, args, err := repo.db.BindNamed(q, student)
	if err != nil {
		return account.Student{}, wrapErr(err, "binding student")
	}
	var s account.Student
	if err = repo.db.GetContext(ctx, &s, q, args...); err != nil {
		return account.Student{}, trapNoRowsErr(err, account.ErrNotFound, "updating student")
	}
	return s, nil
}

func (repo accountRepository) UpdateParent(ctx context.Context, parent account.Parent) (account.Parent, error) {
	q := `
		UPDATE parents SET name = :name, avatar = :avatar, updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + parentColumns
	q, args, err := repo.db.BindNamed(q, parent)
	if err != nil {
		return account.Parent{}, wrapErr(err, "binding parent")
	}
	var p account.Parent
	if err = repo.db.GetContext(ctx, &p, q, args...); err != nil {
		return account.Parent{}, trapNoRowsErr(err, account.ErrNotFound, "updating parent")
	}
	return p, nil
}

func (repo accountRepository) setPassword(ctx context.Context, table string, id int, hash []byte) error {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE "+table+" SET password_hash = $1, updated_at = now() WHERE id = $2", hash, id)
	if err != nil {
		return wrapErr(err, "updating password")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "updating password")
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo accountRepository) SetStudentPassword(ctx context.Context, id int, hash []byte) error {
	return repo.setPassword(ctx, "students", id, hash)
}

func (repo accountRepository) SetParentPassword(ctx context.Context, id int, hash []byte) error {
	return repo.setPassword(ctx, "parents", id, hash)
}
