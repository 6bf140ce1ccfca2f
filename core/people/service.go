package people

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
)

var (
	// errors
	ErrNotFound       = errors.New("not found")
	ErrEmailExists    = errors.New("a person with this email already exists")
	ErrUsernameExists = errors.New("a person with this username already exists")
)

type (
	// Repository is the storage contract for people and the
	// parent-student relationship.
	Repository interface {
		CheckParentUniqueness(ctx context.Context, username, email string, excluded ...Parent) error
		CreateParent(ctx context.Context, p Parent) (Parent, error)
		QueryAllParents(ctx context.Context) ([]Parent, error)
		GetParentByID(ctx context.Context, id string) (Parent, error)
		GetParentByUsernameOrEmail(ctx context.Context, uname string) (Parent, error)
		UpdateParent(ctx context.Context, p Parent) (Parent, error)

		CheckStudentUniqueness(ctx context.Context, username, email string, excluded ...Student) error
		CreateStudent(ctx context.Context, s Student) (Student, error)
		QueryAllStudents(ctx context.Context) ([]Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		FilterStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByUsernameOrEmail(ctx context.Context, uname string) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error

		// StudentsOfParent returns all students linked to the given parent.
		StudentsOfParent(ctx context.Context, parentID string) ([]Student, error)

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacherByID(ctx context.Context, id string) (Teacher, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

// Subjects resolves the set of student identities the caller may aggregate
// over: the student themself, or a parent's linked students.
func (svc *Service) Subjects(ctx context.Context, caller Caller) ([]string, error) {
	if caller.ID == "" {
		return nil, core.ErrPermissionDenied
	}
	switch caller.Role {
	case RoleStudent:
		return []string{caller.ID}, nil
	case RoleParent:
		students, err := svc.repo.StudentsOfParent(ctx, caller.ID)
		if err != nil {
			return nil, errors.Wrap(err, "resolving linked students")
		}
		ids := make([]string, 0, len(students))
		for _, s := range students {
			ids = append(ids, s.ID)
		}
		return ids, nil
	default:
		return nil, core.ErrPermissionDenied
	}
}

// Authorize reports whether the caller may view the given student's data.
// It runs before any data fetch.
func (svc *Service) Authorize(ctx context.Context, caller Caller, studentID string) error {
	if caller.Role == RoleStudent && caller.ID == studentID {
		return nil
	}
	subjects, err := svc.Subjects(ctx, caller)
	if err != nil {
		return err
	}
	for _, id := range subjects {
		if id == studentID {
			return nil
		}
	}
	return core.ErrPermissionDenied
}

func (svc *Service) CreateParent(ctx context.Context, np NewParent) (Parent, error) {
	if err := svc.checkParentUniqueness(ctx, np.Username, np.Email); err != nil {
		return Parent{}, err
	}

	now := time.Now().UTC()
	p := Parent{
		ID:        uuid.New().String(),
		Name:      np.Name,
		Surname:   np.Surname,
		Username:  core.CleanString(np.Username, true /* lower */),
		Email:     core.CleanString(np.Email, true /* lower */),
		Phone:     core.CleanString(np.Phone),
		CIN:       core.CleanString(np.CIN),
		Address:   core.CleanString(np.Address),
		Staff:     np.Staff,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.SetPassword(np.Password); err != nil {
		return Parent{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateParent(ctx, p)
}

// CreateStudent registers a student under a parent. The initial password is
// generated, mailed to the student and returned exactly once.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, string, error) {
	if _, err := svc.repo.GetParentByID(ctx, ns.ParentID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Student{}, "", core.NewValidationError(err, core.FieldError{Field: "parent_id", Error: "parent not found"})
		}
		return Student{}, "", errors.Wrap(err, "checking parent")
	}
	if err := svc.checkStudentUniqueness(ctx, ns.Username, ns.Email); err != nil {
		return Student{}, "", err
	}

	pwd, err := core.RandomPassword(12)
	if err != nil {
		return Student{}, "", errors.Wrap(err, "generating password")
	}

	now := time.Now().UTC()
	s := Student{
		ID:          uuid.New().String(),
		ParentID:    ns.ParentID,
		Name:        ns.Name,
		Surname:     ns.Surname,
		Username:    core.CleanString(ns.Username, true /* lower */),
		Email:       core.CleanString(ns.Email, true /* lower */),
		Phone:       core.CleanString(ns.Phone),
		SchoolLevel: core.CleanString(ns.SchoolLevel),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.SetPassword(pwd); err != nil {
		return Student{}, "", errors.Wrap(err, "setting password")
	}

	s, err = svc.repo.CreateStudent(ctx, s)
	if err != nil {
		return Student{}, "", err
	}
	svc.sendWelcomeMail(s, pwd)
	return s, pwd, nil
}

func (svc *Service) GetParentByID(ctx context.Context, id string) (Parent, error) {
	return svc.repo.GetParentByID(ctx, id)
}

func (svc *Service) GetParentByUsernameOrEmail(ctx context.Context, uname string) (Parent, error) {
	return svc.repo.GetParentByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetStudentByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetStudentByUsernameOrEmail(ctx context.Context, uname string) (Student, error) {
	return svc.repo.GetStudentByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) QueryAllParents(ctx context.Context) ([]Parent, error) {
	return svc.repo.QueryAllParents(ctx)
}

func (svc *Service) QueryAllStudents(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryAllStudents(ctx)
}

func (svc *Service) FilterStudents(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.FilterStudents(ctx, filter)
}

func (svc *Service) Children(ctx context.Context, parentID string) ([]Student, error) {
	return svc.repo.StudentsOfParent(ctx, parentID)
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	if us.Email != "" {
		email := core.CleanString(us.Email, true /* lower */)
		if email != s.Email {
			if err = svc.checkStudentUniqueness(ctx, "", email, s); err != nil {
				return Student{}, err
			}
			s.Email = email
		}
	}
	if us.Name != "" {
		s.Name = us.Name
	}
	if us.Surname != "" {
		s.Surname = us.Surname
	}
	if us.Phone != "" {
		s.Phone = core.CleanString(us.Phone)
	}
	if us.SchoolLevel != "" {
		s.SchoolLevel = core.CleanString(us.SchoolLevel)
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) DeleteStudents(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}

func (svc *Service) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.IsActive = true
	return svc.repo.CreateTeacher(ctx, t)
}

func (svc *Service) SetParentLastLogin(ctx context.Context, p Parent) (Parent, error) {
	p.LastLogin = time.Now().UTC()
	return svc.repo.UpdateParent(ctx, p)
}

func (svc *Service) SetStudentLastLogin(ctx context.Context, s Student) (Student, error) {
	s.LastLogin = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

// RequestPasswordReset mails a reset link to the parent with the given email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	p, err := svc.repo.GetParentByUsernameOrEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(p)
	return nil
}

func (svc *Service) ConfirmPasswordReset(ctx context.Context, data ResetParentPassword) (Parent, error) {
	pid, err := DecodeUID(data.UID)
	if err != nil {
		return Parent{}, core.NewValidationError(errors.New("invalid link"))
	}
	p, err := svc.repo.GetParentByID(ctx, pid)
	if err != nil {
		return Parent{}, err
	}
	if err = verifyToken(p, data.Token, svc.conf); err != nil {
		return Parent{}, core.NewValidationError(err)
	}
	if err = p.SetPassword(data.Password); err != nil {
		return Parent{}, errors.Wrap(err, "setting password")
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateParent(ctx, p)
}

func (svc *Service) checkParentUniqueness(ctx context.Context, uname, email string, excl ...Parent) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if err := svc.repo.CheckParentUniqueness(ctx, uname, email, excl...); err != nil {
		return trapUniquenessErr(err)
	}
	return nil
}

func (svc *Service) checkStudentUniqueness(ctx context.Context, uname, email string, excl ...Student) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if err := svc.repo.CheckStudentUniqueness(ctx, uname, email, excl...); err != nil {
		return trapUniquenessErr(err)
	}
	return nil
}

func trapUniquenessErr(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) sendWelcomeMail(s Student, pwd string) {
	if svc.mailSvc == nil {
		return
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour student account has been created.\n\nUsername: %s\nPassword: %s\n\n"+
			"Sign in at %s and change your password after first login.",
		s.Name, s.Username, pwd, svc.conf.FrontendBaseURL,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: s.Name + " " + s.Surname, Address: s.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		BodyStr: body,
	})
}

func (svc *Service) sendPasswordResetMail(p Parent) {
	if svc.mailSvc == nil {
		return
	}
	token, err := MakeToken(p, svc.conf)
	if err != nil {
		return
	}
	link := fmt.Sprintf("%s/parent-password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(p), token)
	body := fmt.Sprintf(
		"Hi %s,\n\nFollow the link below to reset your password:\n%s\n\n"+
			"If you did not request this, you can safely ignore this email.",
		p.Name, link,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: p.Name + " " + p.Surname, Address: p.Email}},
		Subject: "Password reset",
		BodyStr: body,
	})
}
