package pgrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ForStudents(ctx context.Context, studentIDs []string, rng attendance.DateRange) ([]attendance.Record, error) {
	type recordRow struct {
		ID           string      `db:"id"`
		StudentID    string      `db:"student_id"`
		StudentName  string      `db:"student_name"`
		Date         time.Time   `db:"date"`
		Status       string      `db:"status"`
		StartTime    string      `db:"start_time"`
		EndTime      string      `db:"end_time"`
		Room         null.String `db:"room"`
		GroupID      string      `db:"group_id"`
		GroupName    string      `db:"group_name"`
		GroupSubject string      `db:"group_subject"`
		GroupStatus  string      `db:"group_status"`
	}

	// archived groups are joined like active ones; history keeps them
	q := `SELECT a.id, a.student_id, s.name || ' ' || s.surname AS student_name,
			a.date, a.status, a.start_time, a.end_time, a.room,
			g.id AS group_id, g.name AS group_name, g.subject AS group_subject, g.status AS group_status
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		JOIN groups g ON g.id = a.group_id
		WHERE a.student_id = ANY($1)`
	args := []interface{}{pq.Array(studentIDs)}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !rng.From.IsZero() {
		q += ` AND a.date >= ` + arg(rng.From.UTC())
	}
	if !rng.To.IsZero() {
		q += ` AND a.date <= ` + arg(rng.To.UTC())
	}

	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}

	recs := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, attendance.Record{
			ID:          r.ID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Date:        r.Date,
			Status:      attendance.Status(r.Status),
			Group: attendance.GroupInfo{
				ID:      r.GroupID,
				Name:    r.GroupName,
				Subject: r.GroupSubject,
				Status:  group.Status(r.GroupStatus),
			},
			Session: attendance.SessionInfo{
				StartTime: r.StartTime,
				EndTime:   r.EndTime,
				Room:      r.Room.String,
			},
		})
	}
	return recs, nil
}

func (repo *attendanceRepository) CountForStudents(ctx context.Context, studentIDs []string) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM attendance WHERE student_id = ANY($1)`
	if err := repo.db.GetContext(ctx, &count, q, pq.Array(studentIDs)); err != nil {
		return 0, errors.Wrap(err, "counting attendance")
	}
	return count, nil
}

func (repo *attendanceRepository) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `INSERT INTO attendance (id, student_id, group_id, date, start_time, end_time, room, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, group_id, date, start_time) DO UPDATE SET status = EXCLUDED.status`
	_, err := repo.db.ExecContext(ctx, q,
		rec.ID, rec.StudentID, rec.Group.ID, rec.Date.UTC(),
		rec.Session.StartTime, rec.Session.EndTime,
		null.NewString(rec.Session.Room, rec.Session.Room != ""), string(rec.Status))
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "recording attendance")
	}
	return rec, nil
}
