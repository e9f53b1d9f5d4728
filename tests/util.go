package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
	"github.com/trezcool/masomofees/fs"
	"github.com/trezcool/masomofees/services/email"
	"github.com/trezcool/masomofees/services/logger"
	"github.com/trezcool/masomofees/storage/database/inmem"
)

const (
	SchoolID      = "school-1"
	OtherSchoolID = "school-2"
)

// Env bundles an in-memory fee stack for tests.
type Env struct {
	Conf     *core.Config
	DB       *inmemdb.DB
	Logger   *logsvc.RollbarLogger
	Validate *validator.Validate
	Trans    ut.Translator
	MailSvc  core.EmailService
	Repos    fee.Repositories
	Seq      fee.Sequencer
	Locker   fee.Locker
	UsrRepo  user.Repository
	UserSvc  user.Service
	FeeSvc   fee.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lgr.Enable(false)
	core.ParseEmailTemplates(conf, appfs.FS, "templates/email", lgr)

	validate, translator := NewValidator()
	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, lgr)
	repos := inmemdb.NewRepositories(db)
	usrRepo := inmemdb.NewUserRepository(db)
	seq := inmemdb.NewSequencer()
	locker := inmemdb.NewLocker()

	return &Env{
		Conf:     conf,
		DB:       db,
		Logger:   lgr,
		Validate: validate,
		Trans:    translator,
		MailSvc:  mailSvc,
		Repos:    repos,
		Seq:      seq,
		Locker:   locker,
		UsrRepo:  usrRepo,
		UserSvc:  user.NewService(usrRepo, validate),
		FeeSvc: fee.NewService(
			repos,
			inmemdb.NewTransactor(db),
			seq,
			locker,
			mailSvc,
			validate,
			lgr,
			fee.OptionsFromConfig(conf),
		),
	}
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

func Operator() fee.Operator {
	return fee.Operator{UserID: "user-1", SchoolID: SchoolID}
}

func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func DPtr(s string) *decimal.Decimal {
	d := D(s)
	return &d
}

// AssertDecimal compares amounts by value, ignoring their exponent.
func AssertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.Truef(t, D(want).Equal(got), "want %s; got %s %v", want, got.String(), msgAndArgs)
}

func (env *Env) CreateClass(t *testing.T, name string, monthlyFee string) fee.Class {
	t.Helper()
	cls := fee.Class{SchoolID: SchoolID, Name: name}
	if monthlyFee != "" {
		cls.MonthlyFee = decimal.NewNullDecimal(D(monthlyFee))
	}
	return env.DB.AddClass(cls)
}

func (env *Env) CreateStudent(t *testing.T, name string, cls *fee.Class, opts ...func(st *fee.Student)) fee.Student {
	t.Helper()
	st := fee.Student{
		SchoolID:      SchoolID,
		Name:          name,
		GuardianName:  "Guardian of " + name,
		GuardianEmail: "guardian." + name + "@example.com",
		IsActive:      true,
	}
	if cls != nil {
		st.ClassID = null.StringFrom(cls.ID)
	}
	for _, opt := range opts {
		opt(&st)
	}
	return env.DB.AddStudent(st)
}

func (env *Env) CreateChallan(t *testing.T, st fee.Student, month string, status fee.Status, total string) fee.Challan {
	t.Helper()
	m, err := fee.ParseMonth(month)
	require.NoError(t, err)
	now := time.Now().UTC()
	ch := fee.Challan{
		SchoolID:      st.SchoolID,
		ChallanNumber: fee.ChallanNumber("TEST", m, time.Now().UnixNano()),
		StudentID:     st.ID,
		Month:         month,
		MonthlyFee:    D(total),
		Status:        status,
		DueDate:       m.LastDay(),
		GeneratedBy:   "user-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ch.ComputeTotal()
	if status == fee.StatusPaid {
		ch.AmountPaid = ch.TotalAmount
		ch.PaidDate = null.TimeFrom(now)
	}
	ch, err = env.Repos.Challans.CreateChallan(context.Background(), ch)
	require.NoError(t, err)
	return ch
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	schoolID, name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		SchoolID:  schoolID,
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
