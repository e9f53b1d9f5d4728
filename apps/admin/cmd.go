package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// cliOperatorID identifies the admin CLI as the author of the challans it generates.
const cliOperatorID = "admin-cli"

type commandLine struct {
	db     *sql.DB
	usrSvc user.Service
	feeSvc fee.Service
}

// stringsFlag collects the values of a repeated flag.
type stringsFlag []string

func (f *stringsFlag) String() string { return strings.Join(*f, ",") }

func (f *stringsFlag) Set(val string) error {
	*f = append(*f, val)
	return nil
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  adduser -school SCHOOL -name NAME -username USERNAME -email EMAIL [-roles ROLE,...] - create a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  generate -school SCHOOL -month YYYY-MM [-exam] [-due YYYY-MM-DD] [-skip-existing] -student ID [-student ID ...] - generate challans")
	fmt.Println("  sweep-overdue [-date YYYY-MM-DD] - flag the pending challans due before date as overdue")
}

func (cli *commandLine) promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserSchool := addUserCmd.String("school", "", "The school the user works for.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("roles", user.RoleAdmin, "Comma separated roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	generateSchool := generateCmd.String("school", "", "The school to generate challans for.")
	generateMonth := generateCmd.String("month", "", "The billed month (YYYY-MM).")
	generateExam := generateCmd.Bool("exam", false, "Include the exam fee.")
	generateSkip := generateCmd.Bool("skip-existing", false, "Skip students already billed for the month.")
	generateDue := generateCmd.String("due", "", "The due date (YYYY-MM-DD). Defaults to the 10th of the month.")
	var generateStudents stringsFlag
	generateCmd.Var(&generateStudents, "student", "A student ID; repeat for several students.")

	sweepCmd := flag.NewFlagSet("sweep-overdue", flag.ExitOnError)
	sweepDate := sweepCmd.String("date", "", "Challans due before this date (YYYY-MM-DD) become overdue. Defaults to today.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserSchool == "" || *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(user.NewUser{
			SchoolID:        *addUserSchool,
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           splitRoles(*addUserRoles),
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "generate":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateSchool == "" || *generateMonth == "" || len(generateStudents) == 0 {
			generateCmd.Usage()
			return errHelp
		}
		req := fee.BulkGenerateRequest{
			StudentIDs:     generateStudents,
			Month:          *generateMonth,
			IncludeExamFee: *generateExam,
			SkipExisting:   *generateSkip,
		}
		if *generateDue != "" {
			due, err := parseDate(*generateDue)
			if err != nil {
				return err
			}
			req.DueDate = &due
		}
		return cli.generate(*generateSchool, req)

	case "sweep-overdue":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sweepOverdue(*sweepDate)

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(val string) []string {
	roles := make([]string, 0)
	for _, role := range strings.Split(val, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
