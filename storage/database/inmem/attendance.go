package inmemdb

import (
	"context"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/people"
)

type attendanceRepository struct {
	attendance *table[attendance.Record]
	groups     *table[group.Group]
	students   *table[people.Student]
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{attendance: db.attendance, groups: db.groups, students: db.students}
}

func (repo *attendanceRepository) ForStudents(ctx context.Context, studentIDs []string, rng attendance.DateRange) ([]attendance.Record, error) {
	repo.attendance.RLock()
	defer repo.attendance.RUnlock()
	repo.groups.RLock()
	defer repo.groups.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	var out []attendance.Record
	for _, rec := range repo.attendance.all() {
		if !contains(studentIDs, rec.StudentID) || !rng.Contains(rec.Date) {
			continue
		}
		// refresh joined fields from the current group/student rows
		if g, ok := repo.groups.rows[rec.Group.ID]; ok {
			rec.Group = attendance.GroupInfo{ID: g.ID, Name: g.Name, Subject: g.Subject, Status: g.Status}
		}
		if s, ok := repo.students.rows[rec.StudentID]; ok {
			rec.StudentName = s.Name + " " + s.Surname
		}
		out = append(out, rec)
	}
	return out, nil
}

func (repo *attendanceRepository) CountForStudents(ctx context.Context, studentIDs []string) (int, error) {
	repo.attendance.RLock()
	defer repo.attendance.RUnlock()

	var count int
	for _, rec := range repo.attendance.all() {
		if contains(studentIDs, rec.StudentID) {
			count++
		}
	}
	return count, nil
}

func (repo *attendanceRepository) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.attendance.Lock()
	defer repo.attendance.Unlock()

	// one row per (student, group, date, start time); re-recording updates the status
	for id, existing := range repo.attendance.rows {
		if existing.StudentID == rec.StudentID && existing.Group.ID == rec.Group.ID &&
			existing.Date.Equal(rec.Date) && existing.Session.StartTime == rec.Session.StartTime {
			rec.ID = id
			repo.attendance.rows[id] = &rec
			return rec, nil
		}
	}
	repo.attendance.rows[rec.ID] = &rec
	return rec, nil
}
