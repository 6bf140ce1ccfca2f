package people_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/people"
	emailsvc "github.com/trezcool/mainino/services/email"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"
)

var conf = core.NewTestConfig()

func setup(t *testing.T) (*people.Service, people.Repository) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewPeopleRepository(db)
	return people.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf), repo
}

func addParent(t *testing.T, svc *people.Service, uname string) people.Parent {
	t.Helper()
	p, err := svc.CreateParent(context.Background(), people.NewParent{
		Name:     "Jane",
		Surname:  "Doe",
		Username: uname,
		Email:    uname + "@test.com",
		Password: "LeP@ssword123",
	})
	require.NoError(t, err)
	return p
}

func addStudent(t *testing.T, svc *people.Service, parentID, uname string) people.Student {
	t.Helper()
	s, _, err := svc.CreateStudent(context.Background(), people.NewStudent{
		ParentID: parentID,
		Name:     "Sam",
		Surname:  "Doe",
		Username: uname,
		Email:    uname + "@test.com",
	})
	require.NoError(t, err)
	return s
}

func Test_Service_Subjects(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	parent := addParent(t, svc, "jdoe")
	kid1 := addStudent(t, svc, parent.ID, "sam")
	kid2 := addStudent(t, svc, parent.ID, "kim")
	other := addParent(t, svc, "other")

	t.Run("a student aggregates over themself only", func(t *testing.T) {
		ids, err := svc.Subjects(ctx, people.Caller{ID: kid1.ID, Role: people.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, []string{kid1.ID}, ids)
	})

	t.Run("a parent aggregates over all linked students", func(t *testing.T) {
		ids, err := svc.Subjects(ctx, people.Caller{ID: parent.ID, Role: people.RoleParent})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{kid1.ID, kid2.ID}, ids)
	})

	t.Run("a parent with no students gets an empty set", func(t *testing.T) {
		ids, err := svc.Subjects(ctx, people.Caller{ID: other.ID, Role: people.RoleParent})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("an anonymous caller is denied", func(t *testing.T) {
		_, err := svc.Subjects(ctx, people.Caller{})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("an unknown role is denied", func(t *testing.T) {
		_, err := svc.Subjects(ctx, people.Caller{ID: parent.ID, Role: "teacher"})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})
}

func Test_Service_Authorize(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	parent := addParent(t, svc, "jdoe")
	kid := addStudent(t, svc, parent.ID, "sam")
	stranger := addParent(t, svc, "other")
	strangerKid := addStudent(t, svc, stranger.ID, "kim")

	tests := []struct {
		name      string
		caller    people.Caller
		studentID string
		wantErr   error
	}{
		{"student can view themself", people.Caller{ID: kid.ID, Role: people.RoleStudent}, kid.ID, nil},
		{"student cannot view a sibling", people.Caller{ID: kid.ID, Role: people.RoleStudent}, strangerKid.ID, core.ErrPermissionDenied},
		{"parent can view their child", people.Caller{ID: parent.ID, Role: people.RoleParent}, kid.ID, nil},
		{"parent cannot view another family's child", people.Caller{ID: parent.ID, Role: people.RoleParent}, strangerKid.ID, core.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tt.caller, tt.studentID)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func Test_Service_CreateStudent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	parent := addParent(t, svc, "jdoe")

	t.Run("generates a password and mails it once", func(t *testing.T) {
		sent := len(emailsvc.SentMessages)

		s, pwd, err := svc.CreateStudent(ctx, people.NewStudent{
			ParentID: parent.ID,
			Name:     "Sam",
			Surname:  "Doe",
			Username: "Sam",
			Email:    "Sam@Test.com",
		})
		require.NoError(t, err)
		assert.Len(t, pwd, 12)
		assert.NoError(t, s.CheckPassword(pwd))
		assert.Equal(t, "sam", s.Username) // cleaned and lowered
		assert.Equal(t, "sam@test.com", s.Email)
		assert.True(t, s.IsActive)

		require.Len(t, emailsvc.SentMessages, sent+1)
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		assert.Equal(t, "sam@test.com", msg.To[0].Address)
		assert.Contains(t, msg.BodyStr, pwd)
	})

	t.Run("unknown parent is a validation error", func(t *testing.T) {
		_, _, err := svc.CreateStudent(ctx, people.NewStudent{
			ParentID: "nope",
			Name:     "Sam",
			Surname:  "Doe",
			Username: "sam2",
			Email:    "sam2@test.com",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("duplicate username is a validation error", func(t *testing.T) {
		_, _, err := svc.CreateStudent(ctx, people.NewStudent{
			ParentID: parent.ID,
			Name:     "Kim",
			Surname:  "Doe",
			Username: "SAM", // checked case-insensitively
			Email:    "kim@test.com",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.NotEmpty(t, vErr.Fields)
		assert.Equal(t, "username", vErr.Fields[0].Field)
	})
}

func Test_Service_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	parent := addParent(t, svc, "jdoe")

	sent := len(emailsvc.SentMessages)
	require.NoError(t, svc.RequestPasswordReset(ctx, "JDoe@Test.com"))
	require.Len(t, emailsvc.SentMessages, sent+1)

	token, err := people.MakeToken(parent, conf)
	require.NoError(t, err)

	t.Run("valid token sets the new password", func(t *testing.T) {
		p, err := svc.ConfirmPasswordReset(ctx, people.ResetParentPassword{
			UID:      people.EncodeUID(parent),
			Token:    token,
			Password: "NewP@ss123456",
		})
		require.NoError(t, err)
		assert.NoError(t, p.CheckPassword("NewP@ss123456"))
	})

	t.Run("token is single use", func(t *testing.T) {
		// the password change rotates the token fingerprint
		_, err := svc.ConfirmPasswordReset(ctx, people.ResetParentPassword{
			UID:      people.EncodeUID(parent),
			Token:    token,
			Password: "Another@123456",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("garbage uid is a validation error", func(t *testing.T) {
		_, err := svc.ConfirmPasswordReset(ctx, people.ResetParentPassword{
			UID:      "!!!",
			Token:    token,
			Password: "Another@123456",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}
