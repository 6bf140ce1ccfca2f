package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/mainino/core/people"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	pplRepo people.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status [ARGS...] - run database migrations")
	fmt.Println("  addparent -username USERNAME -email EMAIL [-staff] - create or update a parent account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset a parent's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addParentCmd := flag.NewFlagSet("addparent", flag.ExitOnError)
	addParentUname := addParentCmd.String("username", "", "The parent's username. The password will be prompted next.")
	addParentEmail := addParentCmd.String("email", "", "The parent's email.")
	addParentStaff := addParentCmd.Bool("staff", false, "Grant admin portal access.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The parent's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addparent":
		if err := addParentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addParentUname == "" || *addParentEmail == "" {
			addParentCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addParentCmd.Usage()
			return errHelp
		}
		return cli.addParent(*addParentUname, *addParentEmail, pwd, *addParentStaff)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
