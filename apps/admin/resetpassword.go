package main

import (
	"context"
	"time"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	p, err := cli.pplRepo.GetParentByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err := p.SetPassword(pwd); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	if _, err := cli.pplRepo.UpdateParent(ctx, p); err != nil {
		return err
	}
	return nil
}
