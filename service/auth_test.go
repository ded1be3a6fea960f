package service

import (
	"context"
	"testing"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/testutil"
	"cashadvance/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	st := testutil.NewStore(t)
	return NewAuthService(st, AuthConfig{Secret: []byte("test-secret"), BcryptCost: bcrypt.MinCost}, nil)
}

func register(t *testing.T, a *AuthService, email string) *AuthResult {
	t.Helper()
	res, err := a.Register(context.Background(), RegisterInput{Email: email, Password: "secret1", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	return res
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	reg := register(t, a, "Ada@Example.com")
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.RefreshToken)
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.NotEqual(t, []byte("secret1"), reg.User.PasswordHash)

	login, err := a.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	me, err := a.CurrentUser(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, me.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	gdb := testutil.NewDB(t)
	a := NewAuthService(store.New(gdb), AuthConfig{Secret: []byte("test-secret"), BcryptCost: bcrypt.MinCost}, nil)
	register(t, a, "dup@example.com")
	_, err := a.Register(context.Background(), RegisterInput{Email: " DUP@example.com", Password: "another", FirstName: "B", LastName: "C"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	var n int64
	require.NoError(t, gdb.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRegisterValidation(t *testing.T) {
	a := newAuth(t)
	cases := []RegisterInput{
		{Email: "not-an-email", Password: "secret1", FirstName: "A", LastName: "B"},
		{Email: "a@example.com", Password: "short", FirstName: "A", LastName: "B"},
		{Email: "a@example.com", Password: "secret1", FirstName: " ", LastName: "B"},
	}
	for _, in := range cases {
		_, err := a.Register(context.Background(), in)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%+v", in)
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	a := newAuth(t)
	register(t, a, "eve@example.com")

	res, err := a.Login(context.Background(), "eve@example.com", "wrong-password")
	assert.Nil(t, res)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	wrongPw := err.Error()

	_, err = a.Login(context.Background(), "nobody@example.com", "secret1")
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Equal(t, wrongPw, err.Error())
}

func TestTokenExpiryAndTampering(t *testing.T) {
	a := newAuth(t)
	reg := register(t, a, "tok@example.com")

	// claims carry only the user id and the time fields
	parsed, _, err := jwt.NewParser().ParseUnverified(reg.Token, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, reg.User.ID, claims["userId"])
	assert.Len(t, claims, 3)
	exp, _ := claims.GetExpirationTime()
	iat, _ := claims.GetIssuedAt()
	assert.Equal(t, 24*time.Hour, exp.Sub(iat.Time))

	a.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = a.CurrentUser(context.Background(), reg.Token)
	assert.EqualError(t, err, msgInvalidToken)
	a.now = time.Now

	_, err = a.CurrentUser(context.Background(), reg.Token+"x")
	assert.EqualError(t, err, msgInvalidToken)

	other := NewAuthService(a.st, AuthConfig{Secret: []byte("other-secret")}, nil)
	forged, err := other.IssueToken(reg.User.ID)
	require.NoError(t, err)
	_, err = a.CurrentUser(context.Background(), forged)
	assert.EqualError(t, err, msgInvalidToken)

	ghost, err := a.IssueToken("no-such-user")
	require.NoError(t, err)
	_, err = a.CurrentUser(context.Background(), ghost)
	assert.EqualError(t, err, msgInvalidToken)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	reg := register(t, a, "rot@example.com")

	next, err := a.Refresh(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, next.RefreshToken)

	_, err = a.Refresh(ctx, reg.RefreshToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err), "rotated token must not be reusable")

	require.NoError(t, a.Logout(ctx, next.RefreshToken))
	_, err = a.Refresh(ctx, next.RefreshToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	assert.NoError(t, a.Logout(ctx, "unknown"))
}

func TestSetPassword(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	register(t, a, "pw@example.com")

	require.NoError(t, a.SetPassword(ctx, "pw@example.com", "newpass1"))
	_, err := a.Login(ctx, "pw@example.com", "secret1")
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	_, err = a.Login(ctx, "pw@example.com", "newpass1")
	assert.NoError(t, err)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(a.SetPassword(ctx, "pw@example.com", "123")))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(a.SetPassword(ctx, "missing@example.com", "validpw")))
}
