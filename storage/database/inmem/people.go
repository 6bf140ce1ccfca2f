package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/mainino/core/people"
)

type peopleRepository struct {
	parents  *table[people.Parent]
	students *table[people.Student]
	teachers *table[people.Teacher]
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *DB) *peopleRepository {
	return &peopleRepository{parents: db.parents, students: db.students, teachers: db.teachers}
}

func (repo *peopleRepository) CheckParentUniqueness(ctx context.Context, username, email string, excluded ...people.Parent) error {
	repo.parents.RLock()
	defer repo.parents.RUnlock()

	exclIDs := make([]string, 0, len(excluded))
	for _, p := range excluded {
		exclIDs = append(exclIDs, p.ID)
	}
	for _, p := range repo.parents.all() {
		if contains(exclIDs, p.ID) {
			continue
		}
		if p.Username == username {
			return people.ErrUsernameExists
		}
		if p.Email == email {
			return people.ErrEmailExists
		}
	}
	return nil
}

func (repo *peopleRepository) CreateParent(ctx context.Context, p people.Parent) (people.Parent, error) {
	repo.parents.Lock()
	defer repo.parents.Unlock()
	repo.parents.rows[p.ID] = &p
	return p, nil
}

func (repo *peopleRepository) QueryAllParents(ctx context.Context) ([]people.Parent, error) {
	repo.parents.RLock()
	defer repo.parents.RUnlock()
	return repo.parents.all(), nil
}

func (repo *peopleRepository) GetParentByID(ctx context.Context, id string) (people.Parent, error) {
	repo.parents.RLock()
	defer repo.parents.RUnlock()

	if p, ok := repo.parents.rows[id]; ok {
		return *p, nil
	}
	return people.Parent{}, people.ErrNotFound
}

func (repo *peopleRepository) GetParentByUsernameOrEmail(ctx context.Context, uname string) (people.Parent, error) {
	repo.parents.RLock()
	defer repo.parents.RUnlock()

	for _, p := range repo.parents.all() {
		if p.Username == uname || p.Email == uname {
			return p, nil
		}
	}
	return people.Parent{}, people.ErrNotFound
}

func (repo *peopleRepository) UpdateParent(ctx context.Context, p people.Parent) (people.Parent, error) {
	repo.parents.Lock()
	defer repo.parents.Unlock()

	if _, ok := repo.parents.rows[p.ID]; !ok {
		return people.Parent{}, people.ErrNotFound
	}
	repo.parents.rows[p.ID] = &p
	return p, nil
}

func (repo *peopleRepository) CheckStudentUniqueness(ctx context.Context, username, email string, excluded ...people.Student) error {
	repo.students.RLock()
	defer repo.students.RUnlock()

	exclIDs := make([]string, 0, len(excluded))
	for _, s := range excluded {
		exclIDs = append(exclIDs, s.ID)
	}
	for _, s := range repo.students.all() {
		if contains(exclIDs, s.ID) {
			continue
		}
		if s.Username == username {
			return people.ErrUsernameExists
		}
		if s.Email == email {
			return people.ErrEmailExists
		}
	}
	return nil
}

func (repo *peopleRepository) CreateStudent(ctx context.Context, s people.Student) (people.Student, error) {
	repo.students.Lock()
	defer repo.students.Unlock()
	repo.students.rows[s.ID] = &s
	return s, nil
}

func (repo *peopleRepository) QueryAllStudents(ctx context.Context) ([]people.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()
	return repo.students.all(), nil
}

func (repo *peopleRepository) FilterStudents(ctx context.Context, filter people.QueryFilter) ([]people.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matches := func(s people.Student) bool {
		if search != "" {
			hit := strings.Contains(strings.ToLower(s.Name), search) ||
				strings.Contains(strings.ToLower(s.Surname), search) ||
				strings.Contains(strings.ToLower(s.Username), search) ||
				strings.Contains(strings.ToLower(s.Email), search)
			if !hit {
				return false
			}
		}
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && s.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && s.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}

	var out []people.Student
	for _, s := range repo.students.all() {
		if matches(s) {
			out = append(out, s)
		}
	}
	sortStudents(out, filter)
	return out, nil
}

func (repo *peopleRepository) GetStudentByID(ctx context.Context, id string) (people.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	if s, ok := repo.students.rows[id]; ok {
		return *s, nil
	}
	return people.Student{}, people.ErrNotFound
}

func (repo *peopleRepository) GetStudentByUsernameOrEmail(ctx context.Context, uname string) (people.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	for _, s := range repo.students.all() {
		if s.Username == uname || s.Email == uname {
			return s, nil
		}
	}
	return people.Student{}, people.ErrNotFound
}

func (repo *peopleRepository) UpdateStudent(ctx context.Context, s people.Student) (people.Student, error) {
	repo.students.Lock()
	defer repo.students.Unlock()

	if _, ok := repo.students.rows[s.ID]; !ok {
		return people.Student{}, people.ErrNotFound
	}
	repo.students.rows[s.ID] = &s
	return s, nil
}

func (repo *peopleRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	repo.students.Lock()
	defer repo.students.Unlock()

	for _, id := range ids {
		delete(repo.students.rows, id)
	}
	return nil
}

func (repo *peopleRepository) StudentsOfParent(ctx context.Context, parentID string) ([]people.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	var out []people.Student
	for _, s := range repo.students.all() {
		if s.ParentID == parentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (repo *peopleRepository) CreateTeacher(ctx context.Context, t people.Teacher) (people.Teacher, error) {
	repo.teachers.Lock()
	defer repo.teachers.Unlock()
	repo.teachers.rows[t.ID] = &t
	return t, nil
}

func (repo *peopleRepository) GetTeacherByID(ctx context.Context, id string) (people.Teacher, error) {
	repo.teachers.RLock()
	defer repo.teachers.RUnlock()

	if t, ok := repo.teachers.rows[id]; ok {
		return *t, nil
	}
	return people.Teacher{}, people.ErrNotFound
}

func sortStudents(students []people.Student, filter people.QueryFilter) {
	less := func(i, j int) bool { return students[i].CreatedAt.After(students[j].CreatedAt) }
	for _, o := range filter.Orderings {
		o := o
		switch o.Field {
		case "name":
			less = func(i, j int) bool { return cmpOrdered(students[i].Name, students[j].Name, o.Ascending) }
		case "surname":
			less = func(i, j int) bool { return cmpOrdered(students[i].Surname, students[j].Surname, o.Ascending) }
		case "username":
			less = func(i, j int) bool { return cmpOrdered(students[i].Username, students[j].Username, o.Ascending) }
		case "email":
			less = func(i, j int) bool { return cmpOrdered(students[i].Email, students[j].Email, o.Ascending) }
		case "created_at":
			less = func(i, j int) bool {
				if o.Ascending {
					return students[i].CreatedAt.Before(students[j].CreatedAt)
				}
				return students[i].CreatedAt.After(students[j].CreatedAt)
			}
		default:
			continue
		}
		break // first recognized ordering wins
	}
	sort.SliceStable(students, less)
}

func cmpOrdered(a, b string, asc bool) bool {
	if asc {
		return a < b
	}
	return a > b
}
