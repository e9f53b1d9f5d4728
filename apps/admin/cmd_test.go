package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
	"github.com/trezcool/masomofees/tests"
)

func setup(t *testing.T) (*testutil.Env, *commandLine) {
	env := testutil.NewEnv(t)
	return env, &commandLine{
		usrSvc: env.UserSvc,
		feeSvc: env.FeeSvc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantAnyErr bool
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	case tt.wantAnyErr:
		assert.Error(t, err)
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	_, cli := setup(t)

	gooseRunFunc = func(command string, _ *sql.DB, _ fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "discounts", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	env, cli := setup(t)
	testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "Clerk", "clerk", "clerk@test.cd", "", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no school", args: []string{"adduser", "-name", "Bursar", "-username", "bursar"}, extra: "s3cr3tpwd", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-school", testutil.SchoolID, "-name", "Bursar", "-username", "bursar"}, wantErr: errHelp},
		{name: "username taken", args: []string{"adduser", "-school", testutil.SchoolID, "-name", "Clerk", "-username", "clerk"}, extra: "s3cr3tpwd", wantAnyErr: true},
		{name: "unknown role", args: []string{"adduser", "-school", testutil.SchoolID, "-name", "Bursar", "-username", "bursar", "-roles", "lol"}, extra: "s3cr3tpwd", wantAnyErr: true},
		{
			name:  "success",
			args:  []string{"adduser", "-school", testutil.SchoolID, "-name", "Bursar", "-username", "bursar", "-email", "bursar@test.cd", "-roles", user.RoleAccountantBursar},
			extra: "s3cr3tpwd",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := env.UserSvc.GetByUsernameOrEmail(context.Background(), "bursar@test.cd")
	require.NoError(t, err)
	assert.Equal(t, testutil.SchoolID, usr.SchoolID)
	assert.Equal(t, []string{user.RoleAccountantBursar}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("s3cr3tpwd"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	env, cli := setup(t)
	usr := testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "User", "awe", "awe@test.cd", "mdrmdrmdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lolilolol", wantErr: user.ErrNotFound},
		{name: "password too short", args: []string{"resetpassword", "-username", "awe"}, extra: "lol", wantAnyErr: true},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "lolilolol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: "lmaolmaolmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	refreshed, err := env.UsrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmaolmaolmao"))
}

func Test_commandLine_generate(t *testing.T) {
	env, cli := setup(t)
	cls := env.CreateClass(t, "Grade 2", "2500")
	st1 := env.CreateStudent(t, "baraka", &cls)
	st2 := env.CreateStudent(t, "chausiku", nil)

	tests := []cliTest{
		{name: "no args", args: []string{"generate"}, wantErr: errHelp},
		{name: "no students", args: []string{"generate", "-school", testutil.SchoolID, "-month", "2025-05"}, wantErr: errHelp},
		{name: "bad due date", args: []string{"generate", "-school", testutil.SchoolID, "-month", "2025-05", "-due", "05/10/2025", "-student", st1.ID}, wantErrStr: "date must be formatted as YYYY-MM-DD (got \"05/10/2025\")"},
		{name: "bad month", args: []string{"generate", "-school", testutil.SchoolID, "-month", "May", "-student", st1.ID}, wantAnyErr: true},
		{name: "partial success", args: []string{"generate", "-school", testutil.SchoolID, "-month", "2025-05", "-due", "2025-05-10", "-student", st1.ID, "-student", st2.ID}},
		{name: "skip existing", args: []string{"generate", "-school", testutil.SchoolID, "-month", "2025-05", "-skip-existing", "-student", st1.ID}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	challans, err := env.FeeSvc.QueryChallans(context.Background(), testutil.SchoolID, fee.ChallanFilter{Month: "2025-05"}, []core.DBOrdering{})
	require.NoError(t, err)
	require.Len(t, challans, 1)
	assert.Equal(t, st1.ID, challans[0].StudentID)
	assert.Equal(t, cliOperatorID, challans[0].GeneratedBy)
	assert.Equal(t, "2025-05-10", challans[0].DueDate.Format(dateLayout))
	testutil.AssertDecimal(t, "2500", challans[0].TotalAmount)
}

func Test_commandLine_sweepOverdue(t *testing.T) {
	env, cli := setup(t)
	cls := env.CreateClass(t, "Grade 3", "1000")
	st := env.CreateStudent(t, "dalila", &cls)
	ch := env.CreateChallan(t, st, "2025-01", fee.StatusPending, "1000") // due 2025-01-31

	tests := []cliTest{
		{name: "bad date", args: []string{"sweep-overdue", "-date", "yesterday"}, wantErrStr: "date must be formatted as YYYY-MM-DD (got \"yesterday\")"},
		{name: "not yet due", args: []string{"sweep-overdue", "-date", "2025-01-15"}},
		{name: "overdue", args: []string{"sweep-overdue", "-date", "2025-02-01"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	got, err := env.FeeSvc.GetChallan(context.Background(), testutil.SchoolID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusOverdue, got.Status)
}
