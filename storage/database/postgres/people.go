package pgrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/people"
)

type peopleRepository struct {
	db *sqlx.DB
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *sqlx.DB) *peopleRepository {
	return &peopleRepository{db: db}
}

type parentRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Surname      string      `db:"surname"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	CIN          null.String `db:"cin"`
	Address      null.String `db:"address"`
	Staff        bool        `db:"staff"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r parentRow) parent() people.Parent {
	return people.Parent{
		ID:           r.ID,
		Name:         r.Name,
		Surname:      r.Surname,
		Username:     r.Username,
		Email:        r.Email,
		Phone:        r.Phone.String,
		CIN:          r.CIN.String,
		Address:      r.Address.String,
		Staff:        r.Staff,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func parentRowFrom(p people.Parent) parentRow {
	return parentRow{
		ID:           p.ID,
		Name:         p.Name,
		Surname:      p.Surname,
		Username:     p.Username,
		Email:        p.Email,
		Phone:        null.NewString(p.Phone, p.Phone != ""),
		CIN:          null.NewString(p.CIN, p.CIN != ""),
		Address:      null.NewString(p.Address, p.Address != ""),
		Staff:        p.Staff,
		IsActive:     p.IsActive,
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(p.LastLogin.UTC(), !p.LastLogin.IsZero()),
	}
}

type studentRow struct {
	ID           string      `db:"id"`
	ParentID     string      `db:"parent_id"`
	Name         string      `db:"name"`
	Surname      string      `db:"surname"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	SchoolLevel  null.String `db:"school_level"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r studentRow) student() people.Student {
	return people.Student{
		ID:           r.ID,
		ParentID:     r.ParentID,
		Name:         r.Name,
		Surname:      r.Surname,
		Username:     r.Username,
		Email:        r.Email,
		Phone:        r.Phone.String,
		SchoolLevel:  r.SchoolLevel.String,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func studentRowFrom(s people.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		ParentID:     s.ParentID,
		Name:         s.Name,
		Surname:      s.Surname,
		Username:     s.Username,
		Email:        s.Email,
		Phone:        null.NewString(s.Phone, s.Phone != ""),
		SchoolLevel:  null.NewString(s.SchoolLevel, s.SchoolLevel != ""),
		IsActive:     s.IsActive,
		PasswordHash: s.PasswordHash,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(s.LastLogin.UTC(), !s.LastLogin.IsZero()),
	}
}

// trapNoRowsErr maps psql "no rows" err to people.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return people.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *peopleRepository) CheckParentUniqueness(ctx context.Context, username, email string, excluded ...people.Parent) error {
	return repo.checkUniqueness(ctx, "parents", username, email, parentIDs(excluded))
}

func (repo *peopleRepository) CheckStudentUniqueness(ctx context.Context, username, email string, excluded ...people.Student) error {
	return repo.checkUniqueness(ctx, "students", username, email, studentIDs(excluded))
}

func (repo *peopleRepository) checkUniqueness(ctx context.Context, table, username, email string, excludedIDs []string) error {
	q := fmt.Sprintf(`SELECT username, email FROM %s WHERE (username = $1 OR email = $2)`, table)
	args := []interface{}{username, email}
	if len(excludedIDs) > 0 {
		q += ` AND id != ALL($3)`
		args = append(args, pq.Array(excludedIDs))
	}

	rows, err := repo.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if uname == username {
			return people.ErrUsernameExists
		}
		if mail == email {
			return people.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking uniqueness")
}

const parentCols = `id, name, surname, username, email, phone, cin, address, staff, is_active, password_hash, created_at, updated_at, last_login`

func (repo *peopleRepository) CreateParent(ctx context.Context, p people.Parent) (people.Parent, error) {
	q := `INSERT INTO parents (` + parentCols + `) VALUES
		(:id, :name, :surname, :username, :email, :phone, :cin, :address, :staff, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, parentRowFrom(p)); err != nil {
		return people.Parent{}, errors.Wrap(err, "creating parent")
	}
	return p, nil
}

func (repo *peopleRepository) QueryAllParents(ctx context.Context) ([]people.Parent, error) {
	var rows []parentRow
	q := `SELECT ` + parentCols + ` FROM parents ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	parents := make([]people.Parent, 0, len(rows))
	for _, r := range rows {
		parents = append(parents, r.parent())
	}
	return parents, nil
}

func (repo *peopleRepository) GetParentByID(ctx context.Context, id string) (people.Parent, error) {
	var row parentRow
	q := `SELECT ` + parentCols + ` FROM parents WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return people.Parent{}, trapNoRowsErr(err, "getting parent")
	}
	return row.parent(), nil
}

func (repo *peopleRepository) GetParentByUsernameOrEmail(ctx context.Context, uname string) (people.Parent, error) {
	var row parentRow
	q := `SELECT ` + parentCols + ` FROM parents WHERE username = $1 OR email = $1`
	if err := repo.db.GetContext(ctx, &row, q, uname); err != nil {
		return people.Parent{}, trapNoRowsErr(err, "getting parent")
	}
	return row.parent(), nil
}

func (repo *peopleRepository) UpdateParent(ctx context.Context, p people.Parent) (people.Parent, error) {
	q := `UPDATE parents SET name = :name, surname = :surname, username = :username, email = :email,
		phone = :phone, cin = :cin, address = :address, staff = :staff, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, parentRowFrom(p))
	if err != nil {
		return people.Parent{}, errors.Wrap(err, "updating parent")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return people.Parent{}, people.ErrNotFound
	}
	return p, nil
}

const studentCols = `id, parent_id, name, surname, username, email, phone, school_level, is_active, password_hash, created_at, updated_at, last_login`

func (repo *peopleRepository) CreateStudent(ctx context.Context, s people.Student) (people.Student, error) {
	q := `INSERT INTO students (` + studentCols + `) VALUES
		(:id, :parent_id, :name, :surname, :username, :email, :phone, :school_level, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, studentRowFrom(s)); err != nil {
		return people.Student{}, errors.Wrap(err, "creating student")
	}
	return s, nil
}

func (repo *peopleRepository) QueryAllStudents(ctx context.Context) ([]people.Student, error) {
	var rows []studentRow
	q := `SELECT ` + studentCols + ` FROM students ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return studentsFrom(rows), nil
}

func (repo *peopleRepository) FilterStudents(ctx context.Context, filter people.QueryFilter) ([]people.Student, error) {
	q := `SELECT ` + studentCols + ` FROM students WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + search + "%")
		q += fmt.Sprintf(` AND (name ILIKE %[1]s OR surname ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)`, p)
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ` + arg(*filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}
	q += orderBy(filter.Orderings)

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return studentsFrom(rows), nil
}

func (repo *peopleRepository) GetStudentByID(ctx context.Context, id string) (people.Student, error) {
	var row studentRow
	q := `SELECT ` + studentCols + ` FROM students WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return people.Student{}, trapNoRowsErr(err, "getting student")
	}
	return row.student(), nil
}

func (repo *peopleRepository) GetStudentByUsernameOrEmail(ctx context.Context, uname string) (people.Student, error) {
	var row studentRow
	q := `SELECT ` + studentCols + ` FROM students WHERE username = $1 OR email = $1`
	if err := repo.db.GetContext(ctx, &row, q, uname); err != nil {
		return people.Student{}, trapNoRowsErr(err, "getting student")
	}
	return row.student(), nil
}

func (repo *peopleRepository) UpdateStudent(ctx context.Context, s people.Student) (people.Student, error) {
	q := `UPDATE students SET parent_id = :parent_id, name = :name, surname = :surname, username = :username,
		email = :email, phone = :phone, school_level = :school_level, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, studentRowFrom(s))
	if err != nil {
		return people.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return people.Student{}, people.ErrNotFound
	}
	return s, nil
}

func (repo *peopleRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM students WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting students")
}

func (repo *peopleRepository) StudentsOfParent(ctx context.Context, parentID string) ([]people.Student, error) {
	var rows []studentRow
	q := `SELECT ` + studentCols + ` FROM students WHERE parent_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, parentID); err != nil {
		return nil, errors.Wrap(err, "querying linked students")
	}
	return studentsFrom(rows), nil
}

func (repo *peopleRepository) CreateTeacher(ctx context.Context, t people.Teacher) (people.Teacher, error) {
	q := `INSERT INTO teachers (id, name, surname, email, is_active) VALUES ($1, $2, $3, $4, $5)`
	email := null.NewString(t.Email, t.Email != "")
	if _, err := repo.db.ExecContext(ctx, q, t.ID, t.Name, t.Surname, email, t.IsActive); err != nil {
		return people.Teacher{}, errors.Wrap(err, "creating teacher")
	}
	return t, nil
}

func (repo *peopleRepository) GetTeacherByID(ctx context.Context, id string) (people.Teacher, error) {
	row := struct {
		ID       string      `db:"id"`
		Name     string      `db:"name"`
		Surname  string      `db:"surname"`
		Email    null.String `db:"email"`
		IsActive bool        `db:"is_active"`
	}{}
	q := `SELECT id, name, surname, email, is_active FROM teachers WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return people.Teacher{}, trapNoRowsErr(err, "getting teacher")
	}
	return people.Teacher{ID: row.ID, Name: row.Name, Surname: row.Surname, Email: row.Email.String, IsActive: row.IsActive}, nil
}

func studentsFrom(rows []studentRow) []people.Student {
	students := make([]people.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students
}

func parentIDs(parents []people.Parent) []string {
	ids := make([]string, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, p.ID)
	}
	return ids
}

func studentIDs(students []people.Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}

// orderBy renders a safe ORDER BY clause from known column orderings,
// defaulting to newest first.
func orderBy(orderings []core.DBOrdering) string {
	allowed := map[string]bool{"name": true, "surname": true, "username": true, "email": true, "created_at": true, "updated_at": true}
	var parts []string
	for _, o := range orderings {
		if !allowed[o.Field] {
			continue
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		parts = append(parts, o.Field+" "+dir)
	}
	if len(parts) == 0 {
		return ` ORDER BY created_at DESC`
	}
	return ` ORDER BY ` + strings.Join(parts, ", ")
}
