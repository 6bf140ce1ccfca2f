package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mainino/core/group"
)

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

type groupRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Subject   string      `db:"subject"`
	Level     string      `db:"level"`
	Room      null.String `db:"room"`
	TimeSlots []byte      `db:"time_slots"`
	TeacherID string      `db:"teacher_id"`
	Status    string      `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r groupRow) group() (group.Group, error) {
	var slots []group.TimeSlot
	if len(r.TimeSlots) > 0 {
		if err := json.Unmarshal(r.TimeSlots, &slots); err != nil {
			return group.Group{}, errors.Wrap(err, "decoding time slots")
		}
	}
	return group.Group{
		ID:        r.ID,
		Name:      r.Name,
		Subject:   r.Subject,
		Level:     r.Level,
		Room:      r.Room.String,
		TimeSlots: slots,
		TeacherID: r.TeacherID,
		Status:    group.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

const groupCols = `id, name, subject, level, room, time_slots, teacher_id, status, created_at, updated_at`

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	slots, err := json.Marshal(g.TimeSlots)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "encoding time slots")
	}
	q := `INSERT INTO groups (` + groupCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = repo.db.ExecContext(ctx, q,
		g.ID, g.Name, g.Subject, g.Level, null.NewString(g.Room, g.Room != ""),
		slots, g.TeacherID, string(g.Status), g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		return group.Group{}, errors.Wrap(err, "creating group")
	}
	return g, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	var row groupRow
	q := `SELECT ` + groupCols + ` FROM groups WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return group.Group{}, trapNoGroupErr(err, "getting group")
	}
	return row.group()
}

func (repo *groupRepository) GroupsByID(ctx context.Context, ids []string) ([]group.Group, error) {
	if len(ids) == 0 {
		return []group.Group{}, nil
	}
	var rows []groupRow
	q := `SELECT ` + groupCols + ` FROM groups WHERE id = ANY($1)`
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return groupsFrom(rows)
}

func (repo *groupRepository) QueryAllGroups(ctx context.Context) ([]group.Group, error) {
	var rows []groupRow
	q := `SELECT ` + groupCols + ` FROM groups ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return groupsFrom(rows)
}

func (repo *groupRepository) UpdateGroupStatus(ctx context.Context, id string, status group.Status) error {
	q := `UPDATE groups SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, q, string(status), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating group status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo *groupRepository) Enroll(ctx context.Context, groupID, studentID string) error {
	q := `INSERT INTO group_students (group_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := repo.db.ExecContext(ctx, q, groupID, studentID)
	return errors.Wrap(err, "enrolling student")
}

func (repo *groupRepository) GroupsForStudents(ctx context.Context, studentIDs []string, onlyActive bool) ([]group.Course, error) {
	type courseRow struct {
		groupRow
		StudentID    string      `db:"student_id"`
		StudentName  string      `db:"student_name"`
		TeacherName  string      `db:"teacher_name"`
		TeacherEmail null.String `db:"teacher_email"`
	}

	q := `SELECT g.id, g.name, g.subject, g.level, g.room, g.time_slots, g.teacher_id, g.status, g.created_at, g.updated_at,
			s.id AS student_id, s.name || ' ' || s.surname AS student_name,
			t.name || ' ' || t.surname AS teacher_name, t.email AS teacher_email
		FROM group_students gs
		JOIN groups g ON g.id = gs.group_id
		JOIN students s ON s.id = gs.student_id
		JOIN teachers t ON t.id = g.teacher_id
		WHERE gs.student_id = ANY($1)`
	if onlyActive {
		q += ` AND g.status = 'active'`
	}
	q += ` ORDER BY g.name, student_name`

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(studentIDs)); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]group.Course, 0, len(rows))
	for _, r := range rows {
		g, err := r.group()
		if err != nil {
			return nil, err
		}
		courses = append(courses, group.Course{
			ID:          g.ID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Name:        g.Name,
			Subject:     g.Subject,
			Level:       g.Level,
			Room:        g.Room,
			TimeSlots:   g.TimeSlots,
			Teacher:     group.TeacherInfo{Name: r.TeacherName, Email: r.TeacherEmail.String},
			Status:      g.Status,
		})
	}
	return courses, nil
}

func (repo *groupRepository) SessionOverrides(ctx context.Context, groupIDs []string, from, to time.Time) ([]group.Override, error) {
	if len(groupIDs) == 0 {
		return []group.Override{}, nil
	}
	type overrideRow struct {
		GroupID   string      `db:"group_id"`
		Date      time.Time   `db:"date"`
		StartTime string      `db:"start_time"`
		EndTime   string      `db:"end_time"`
		Room      null.String `db:"room"`
	}

	var rows []overrideRow
	q := `SELECT group_id, date, start_time, end_time, room FROM session_overrides
		WHERE group_id = ANY($1) AND date BETWEEN $2 AND $3`
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(groupIDs), from.UTC(), to.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying session overrides")
	}

	ovrs := make([]group.Override, 0, len(rows))
	for _, r := range rows {
		ovrs = append(ovrs, group.Override{
			GroupID:   r.GroupID,
			Date:      r.Date,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Room:      r.Room.String,
		})
	}
	return ovrs, nil
}

func groupsFrom(rows []groupRow) ([]group.Group, error) {
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		g, err := r.group()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func trapNoGroupErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return group.ErrNotFound
	}
	return errors.Wrap(err, msg)
}
