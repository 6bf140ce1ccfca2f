package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/people"
)

// addParent updates or creates a parent account; -staff grants the admin portal.
func (cli *commandLine) addParent(uname, email, pwd string, staff bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	p, err := cli.pplRepo.GetParentByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != people.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		p = people.Parent{
			ID:        uuid.New().String(),
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
		p.Staff = staff
		p.IsActive = true
		p.UpdatedAt = now
		if err = p.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.pplRepo.CreateParent(ctx, p)
		return err
	}

	p.Staff = staff
	p.IsActive = true
	p.UpdatedAt = time.Now().UTC()
	if err = p.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.pplRepo.UpdateParent(ctx, p)
	return err
}
