package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/people"
)

type groupRepository struct {
	groups      *table[group.Group]
	enrollments *enrollmentTable
	overrides   *overrideTable
	students    *table[people.Student]
	teachers    *table[people.Teacher]
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{
		groups:      db.groups,
		enrollments: db.enrollments,
		overrides:   db.overrides,
		students:    db.students,
		teachers:    db.teachers,
	}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	repo.groups.Lock()
	defer repo.groups.Unlock()
	repo.groups.rows[g.ID] = &g
	return g, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	if g, ok := repo.groups.rows[id]; ok {
		return *g, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) GroupsByID(ctx context.Context, ids []string) ([]group.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	out := make([]group.Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := repo.groups.rows[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (repo *groupRepository) QueryAllGroups(ctx context.Context) ([]group.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()
	return repo.groups.all(), nil
}

func (repo *groupRepository) UpdateGroupStatus(ctx context.Context, id string, status group.Status) error {
	repo.groups.Lock()
	defer repo.groups.Unlock()

	g, ok := repo.groups.rows[id]
	if !ok {
		return group.ErrNotFound
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *groupRepository) Enroll(ctx context.Context, groupID, studentID string) error {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	if _, ok := repo.enrollments.rows[groupID]; !ok {
		repo.enrollments.rows[groupID] = make(map[string]struct{})
	}
	repo.enrollments.rows[groupID][studentID] = struct{}{}
	return nil
}

func (repo *groupRepository) GroupsForStudents(ctx context.Context, studentIDs []string, onlyActive bool) ([]group.Course, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()
	repo.teachers.RLock()
	defer repo.teachers.RUnlock()

	var courses []group.Course
	for groupID, enrolled := range repo.enrollments.rows {
		g, ok := repo.groups.rows[groupID]
		if !ok {
			continue
		}
		if onlyActive && g.Status != group.StatusActive {
			continue
		}

		var teacher group.TeacherInfo
		if t, ok := repo.teachers.rows[g.TeacherID]; ok {
			teacher = group.TeacherInfo{Name: t.Name + " " + t.Surname, Email: t.Email}
		}

		for _, sid := range studentIDs {
			if _, ok := enrolled[sid]; !ok {
				continue
			}
			var studentName string
			if s, ok := repo.students.rows[sid]; ok {
				studentName = s.Name + " " + s.Surname
			}
			courses = append(courses, group.Course{
				ID:          g.ID,
				StudentID:   sid,
				StudentName: studentName,
				Name:        g.Name,
				Subject:     g.Subject,
				Level:       g.Level,
				Room:        g.Room,
				TimeSlots:   g.TimeSlots,
				Teacher:     teacher,
				Status:      g.Status,
			})
		}
	}
	return courses, nil
}

func (repo *groupRepository) SessionOverrides(ctx context.Context, groupIDs []string, from, to time.Time) ([]group.Override, error) {
	repo.overrides.RLock()
	defer repo.overrides.RUnlock()

	var out []group.Override
	for _, ovr := range repo.overrides.rows {
		if !contains(groupIDs, ovr.GroupID) {
			continue
		}
		if ovr.Date.Before(from) || ovr.Date.After(to) {
			continue
		}
		out = append(out, ovr)
	}
	return out, nil
}

// SetOverride upserts a session override; there is one per group and date.
func (repo *groupRepository) SetOverride(ctx context.Context, ovr group.Override) error {
	repo.overrides.Lock()
	defer repo.overrides.Unlock()
	repo.overrides.rows[overrideKey(ovr.GroupID, ovr.Date)] = ovr
	return nil
}
