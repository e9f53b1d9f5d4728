package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomofees/apps/api/echo"
	"github.com/trezcool/masomofees/core/user"
	"github.com/trezcool/masomofees/tests"
)

func Test_userApi_login(t *testing.T) {
	env, app := setup(t)

	pwd := "Pass.word!"
	usr := testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "Clerk", "clerk", "clerk@test.cd", pwd, []string{user.RoleAccountant}, true)
	testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "Gone", "gone", "gone@test.cd", pwd, []string{user.RoleAccountant}, false)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	tests := []httpTest{
		{
			name: "Missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", body: body("nobody", pwd), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: body("clerk", "nope"), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Inactive user", body: body("gone", pwd), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runTests(t, app, tests)

	for _, uname := range []string{"CLERK ", "clerk@test.cd"} {
		t.Run("Login with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", body(uname, pwd))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			unmarshalObj(t, rec, &resp)
			claims := new(echoapi.Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(env.Conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, usr.ID, claims.Subject)
			assert.Equal(t, testutil.SchoolID, claims.SchoolID)
		})
	}

	got, err := env.UserSvc.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())
}

func Test_userApi_refreshToken(t *testing.T) {
	env, app := setup(t)

	naughty := testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleAccountant}, false)
	clerk := testutil.CreateUser(t, env.UsrRepo, testutil.SchoolID, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleAccountant}, true)

	claims := echoapi.GetUserClaims(env.Conf, clerk)
	claims.OrigIssuedAt = time.Now().Add(-2 * env.Conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	unrefreshableToken, err := echoapi.GenerateToken(env.Conf, claims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: getToken(t, env, naughty), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, env, clerk), wantCode: http.StatusOK},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runTests(t, app, tests)
}
