package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/jifunze/core/account"
)

type accountRepository struct {
	db *accountTables
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) StudentEmailExists(_ context.Context, email string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.studentByEmail(email)
	return ok, nil
}

func (repo *accountRepository) studentByEmail(email string) (*account.Student, bool) {
	for _, s := range repo.db.students {
		if s.Email == email {
			return s, true
		}
	}
	return nil, false
}

func (repo *accountRepository) parentByEmail(email string) (*account.Parent, bool) {
	for _, p := range repo.db.parents {
		if p.Email == email {
			return p, true
		}
	}
	return nil, false
}

func (repo *accountRepository) EnsureParent(_ context.Context, parent account.Parent) (account.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if p, ok := repo.parentByEmail(parent.Email); ok {
		return *p, nil
	}
	repo.db.pk.parent++
	parent.ID = repo.db.pk.parent
	repo.db.parents[parent.ID] = &parent
	return parent, nil
}

func (repo *accountRepository) CreateStudent(_ context.Context, student account.Student) (account.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.studentByEmail(student.Email); ok {
		return account.Student{}, account.ErrEmailExists
	}
	if _, ok := repo.db.parents[student.ParentID]; !ok {
		return account.Student{}, account.ErrNotFound
	}
	repo.db.pk.student++
	student.ID = repo.db.pk.student
	repo.db.students[student.ID] = &student
	return student, nil
}

// RegisterStudent holds the lock across both inserts so a rejected student leaves no parent behind.
func (repo *accountRepository) RegisterStudent(_ context.Context, parent account.Parent, student account.Student) (account.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.studentByEmail(student.Email); ok {
		return account.Student{}, account.ErrEmailExists
	}
	p, ok := repo.parentByEmail(parent.Email)
	if !ok {
		repo.db.pk.parent++
		parent.ID = repo.db.pk.parent
		p = &parent
		repo.db.parents[parent.ID] = p
	}
	repo.db.pk.student++
	student.ID = repo.db.pk.student
	student.ParentID = p.ID
	repo.db.students[student.ID] = &student
	return student, nil
}

func (repo *accountRepository) GetStudentByID(_ context.Context, id int) (account.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return account.Student{}, account.ErrNotFound
}

func (repo *accountRepository) GetStudentByEmail(_ context.Context, email string) (account.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.studentByEmail(email); ok {
		return *s, nil
	}
	return account.Student{}, account.ErrNotFound
}

func (repo *accountRepository) GetParentByID(_ context.Context, id int) (account.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.parents[id]; ok {
		return *p, nil
	}
	return account.Parent{}, account.ErrNotFound
}

func (repo *accountRepository) GetParentByEmail(_ context.Context, email string) (account.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.parentByEmail(email); ok {
		return *p, nil
	}
	return account.Parent{}, account.ErrNotFound
}

func (repo *accountRepository) QueryStudentsByParent(_ context.Context, parentID int) ([]account.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]account.Student, 0)
	for _, s := range repo.db.students {
		if s.ParentID == parentID {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *accountRepository) UpdateStudent(_ context.Context, student account.Student) (account.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.students[student.ID]
	if !ok {
		return account.Student{}, account.ErrNotFound
	}
	s.Name = student.Name
	s.Age = student.Age
	s.Grade = student.Grade
	s.Avatar = student.Avatar
	s.UpdatedAt = student.UpdatedAt
	return *s, nil
}

func (repo *accountRepository) UpdateParent(_ context.Context, parent account.Parent) (account.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.parents[parent.ID]
	if !ok {
		return account.Parent{}, account.ErrNotFound
	}
	p.Name = parent.Name
	p.Avatar = parent.Avatar
	p.UpdatedAt = parent.UpdatedAt
	return *p, nil
}

func (repo *accountRepository) SetStudentPassword(_ context.Context, id int, hash []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.students[id]
	if !ok {
		return account.ErrNotFound
	}
	s.PasswordHash = hash
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *accountRepository) SetParentPassword(_ context.Context, id int, hash []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.parents[id]
	if !ok {
		return account.ErrNotFound
	}
	p.PasswordHash = hash
	p.UpdatedAt = time.Now().UTC()
	return nil
}
