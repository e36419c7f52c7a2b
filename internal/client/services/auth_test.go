package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/credstore"
	"github.com/dmitrijs2005/quickpage/internal/client/identity"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/tokens"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeProvider struct {
	SignUpErr  error
	ConfirmErr error
	ResendErr  error
	LoginErr   error
	GetUserErr error
	DeleteErr  error

	LoginRet   identity.TokenSet
	GetUserRet map[string]string

	LastSignUp   identity.SignUpInput
	LastConfirm  [2]string
	ResendEmails []string
	LoginCalls   [][2]string
	LastAccess   string
	DeleteCalls  int
	SignUpCalls  int
}

func (f *fakeProvider) SignUp(_ context.Context, in identity.SignUpInput) error {
	f.SignUpCalls++
	f.LastSignUp = in
	return f.SignUpErr
}

func (f *fakeProvider) ConfirmSignUp(_ context.Context, email, code string) error {
	f.LastConfirm = [2]string{email, code}
	return f.ConfirmErr
}

func (f *fakeProvider) ResendConfirmationCode(_ context.Context, email string) error {
	f.ResendEmails = append(f.ResendEmails, email)
	return f.ResendErr
}

func (f *fakeProvider) Login(_ context.Context, email, password string) (identity.TokenSet, error) {
	f.LoginCalls = append(f.LoginCalls, [2]string{email, password})
	return f.LoginRet, f.LoginErr
}

func (f *fakeProvider) Refresh(context.Context, string) (identity.TokenSet, error) {
	return identity.TokenSet{}, errors.New("not used")
}

func (f *fakeProvider) GetUser(_ context.Context, access string) (map[string]string, error) {
	f.LastAccess = access
	return f.GetUserRet, f.GetUserErr
}

func (f *fakeProvider) DeleteUser(_ context.Context, access string) error {
	f.LastAccess = access
	f.DeleteCalls++
	return f.DeleteErr
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeLocal struct{ Resets int }

func (l *fakeLocal) Reset(context.Context) error {
	l.Resets++
	return nil
}

// ---- helpers ----

type fixture struct {
	svc      *authService
	provider *fakeProvider
	store    *credstore.MemoryStore
	local    *fakeLocal

	mu     sync.Mutex
	timers []*fakeTimer
}

func newFixture() *fixture {
	f := &fixture{
		provider: &fakeProvider{LoginRet: identity.TokenSet{IDToken: "id", AccessToken: "acc", RefreshToken: "ref", ExpiresIn: time.Hour}},
		store:    credstore.NewMemoryStore(),
		local:    &fakeLocal{},
	}
	mgr := tokens.NewManager(f.store, f.provider, time.Minute, nil)
	f.svc = NewAuthService(f.provider, mgr, f.local, 15*time.Minute, nil).(*authService)
	f.svc.afterFunc = func(d time.Duration, fn func()) Timer {
		f.mu.Lock()
		defer f.mu.Unlock()
		t := &fakeTimer{d: d, f: fn}
		f.timers = append(f.timers, t)
		return t
	}
	return f
}

func (f *fixture) lastTimer(t *testing.T) *fakeTimer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.timers)
	return f.timers[len(f.timers)-1]
}

const goodPassword = "Str0ng!pass"

// ---- tests ----

func TestValidatePassword_AllRulesListed(t *testing.T) {
	err := ValidatePassword("abc")
	require.ErrorIs(t, err, ErrPasswordPolicy)

	var pe *PasswordPolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"8+ characters", "an uppercase letter", "a number", "a special character"}, pe.Missing)

	err = ValidatePassword("")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"8+ characters", "an uppercase letter", "a lowercase letter", "a number", "a special character"}, pe.Missing)
	assert.Equal(t, "Your password must include: 8+ characters, an uppercase letter, a lowercase letter, a number, a special character", pe.Error())

	assert.NoError(t, ValidatePassword(goodPassword))
	assert.NoError(t, ValidatePassword("Under_score1"), "underscore counts as special")
}

func TestSignUp_PolicyViolationMakesNoRemoteCall(t *testing.T) {
	f := newFixture()
	f.svc.ShowSignup()

	err := f.svc.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Password: "abc"})
	require.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Zero(t, f.provider.SignUpCalls)
	assert.Equal(t, SignupView, f.svc.View())
	assert.Contains(t, f.svc.Notice(), "an uppercase letter")
	assert.Contains(t, f.svc.Notice(), "a number")
	assert.Contains(t, f.svc.Notice(), "a special character")
	assert.Contains(t, f.svc.Notice(), "8+ characters")
}

func TestSignUp_SuccessMovesToVerification(t *testing.T) {
	f := newFixture()
	f.svc.ShowSignup()

	err := f.svc.SignUp(context.Background(), SignUpForm{Email: " a@b.c ", Password: goodPassword, GivenName: "Ada", FamilyName: "L"})
	require.NoError(t, err)

	assert.Equal(t, identity.SignUpInput{Email: "a@b.c", Password: goodPassword, GivenName: "Ada", FamilyName: "L"}, f.provider.LastSignUp)
	assert.Equal(t, VerificationView, f.svc.View())
	assert.Equal(t, MsgAccountCreated, f.svc.Notice())
	p, ok := f.svc.Pending()
	require.True(t, ok)
	assert.Equal(t, "a@b.c", p.Email)
	assert.Equal(t, 15*time.Minute, f.lastTimer(t).d)
}

func TestSignUp_ExistingUnconfirmedResendsCode(t *testing.T) {
	f := newFixture()
	f.provider.SignUpErr = &identity.Error{Code: "UsernameExistsException", Message: "User already exists"}

	err := f.svc.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.c"}, f.provider.ResendEmails)
	assert.Equal(t, VerificationView, f.svc.View())
	assert.Equal(t, MsgCodeSent, f.svc.Notice())
}

func TestSignUp_OtherErrorFormatted(t *testing.T) {
	f := newFixture()
	f.provider.SignUpErr = &identity.Error{Code: "InvalidParameterException", Message: "bad"}

	err := f.svc.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Password: goodPassword})
	require.ErrorIs(t, err, identity.ErrInvalidParameter)
	assert.Equal(t, SignupView, f.svc.View())
	assert.Equal(t, "Invalid input. Please check your information.", f.svc.Notice())
}

func TestVerify_AutoLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.SignUp(ctx, SignUpForm{Email: "a@b.c", Password: goodPassword}))
	timer := f.lastTimer(t)

	require.NoError(t, f.svc.Verify(ctx, " 123456 "))
	assert.Equal(t, [2]string{"a@b.c", "123456"}, f.provider.LastConfirm)
	assert.Equal(t, [][2]string{{"a@b.c", goodPassword}}, f.provider.LoginCalls)
	assert.Equal(t, Authenticated, f.svc.View())
	assert.True(t, timer.stopped)
	_, ok := f.svc.Pending()
	assert.False(t, ok)

	c, _ := f.store.Load(ctx)
	assert.Equal(t, "id", c.IDToken)
	assert.Equal(t, "a@b.c", c.OwnerEmail)
}

func TestVerify_WrongCodeStays(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.SignUp(ctx, SignUpForm{Email: "a@b.c", Password: goodPassword}))
	f.provider.ConfirmErr = &identity.Error{Code: "CodeMismatchException"}

	err := f.svc.Verify(ctx, "000")
	require.ErrorIs(t, err, identity.ErrCodeMismatch)
	assert.Equal(t, VerificationView, f.svc.View())
	assert.Equal(t, "Invalid verification code.", f.svc.Notice())
	_, ok := f.svc.Pending()
	assert.True(t, ok)
}

func TestVerify_WithoutPending(t *testing.T) {
	f := newFixture()
	require.ErrorIs(t, f.svc.Verify(context.Background(), "1"), ErrNoPendingVerification)
}

func TestResend_WithoutEmailFailsGracefully(t *testing.T) {
	f := newFixture()
	err := f.svc.Resend(context.Background())
	require.ErrorIs(t, err, ErrNoPendingVerification)
	assert.Empty(t, f.provider.ResendEmails)
	assert.Equal(t, MsgResendFailed, f.svc.Notice())
}

func TestResend_UsesPendingEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.SignUp(ctx, SignUpForm{Email: "a@b.c", Password: goodPassword}))

	require.NoError(t, f.svc.Resend(ctx))
	assert.Equal(t, []string{"a@b.c"}, f.provider.ResendEmails)
	assert.Equal(t, MsgCodeResent, f.svc.Notice())
}

func TestVerification_TimeoutReturnsToLogin(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Password: goodPassword}))

	f.lastTimer(t).f()

	assert.Equal(t, LoginView, f.svc.View())
	assert.Equal(t, MsgVerificationExpired, f.svc.Notice())
	_, ok := f.svc.Pending()
	assert.False(t, ok)
	require.ErrorIs(t, f.svc.Resend(context.Background()), ErrNoPendingVerification)
}

func TestVerification_StaleTimerIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.SignUp(ctx, SignUpForm{Email: "a@b.c", Password: goodPassword}))
	first := f.lastTimer(t)

	f.svc.ShowSignup()
	require.NoError(t, f.svc.SignUp(ctx, SignUpForm{Email: "x@y.z", Password: goodPassword}))
	assert.True(t, first.stopped)

	first.f()
	assert.Equal(t, VerificationView, f.svc.View())
	p, ok := f.svc.Pending()
	require.True(t, ok)
	assert.Equal(t, "x@y.z", p.Email)
}

func TestSwitchingFormsClearsPending(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Password: goodPassword}))
	f.svc.ShowLogin()
	_, ok := f.svc.Pending()
	assert.False(t, ok)
	assert.Equal(t, LoginView, f.svc.View())
}

func TestLogin_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Login(ctx, "a@b.c", goodPassword))
	assert.Equal(t, Authenticated, f.svc.View())
	c, _ := f.store.Load(ctx)
	assert.Equal(t, "ref", c.RefreshToken)
}

func TestLogin_UnconfirmedMovesToVerification(t *testing.T) {
	f := newFixture()
	f.provider.LoginErr = &identity.Error{Code: "UserNotConfirmedException", Message: "User is not confirmed."}

	err := f.svc.Login(context.Background(), "a@b.c", goodPassword)
	require.ErrorIs(t, err, identity.ErrUserNotConfirmed)
	assert.Equal(t, VerificationView, f.svc.View())
	assert.Equal(t, MsgVerifyFirst, f.svc.Notice())
	p, ok := f.svc.Pending()
	require.True(t, ok)
	assert.Equal(t, models.PendingVerification{Email: "a@b.c", Password: goodPassword, StartedAt: p.StartedAt}, p)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	f.provider.LoginErr = &identity.Error{Code: "NotAuthorizedException", Message: "Incorrect username or password."}

	err := f.svc.Login(context.Background(), "a@b.c", "nope")
	require.ErrorIs(t, err, identity.ErrNotAuthorized)
	assert.Equal(t, LoginView, f.svc.View())
	assert.Equal(t, "Incorrect email or password.", f.svc.Notice())
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, "a@b.c", goodPassword))

	require.NoError(t, f.svc.Logout(ctx))
	require.NoError(t, f.svc.Logout(ctx))
	c, _ := f.store.Load(ctx)
	assert.True(t, c.IsZero())
	assert.Equal(t, LoginView, f.svc.View())
}

func TestProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, "a@b.c", goodPassword))
	f.provider.GetUserRet = map[string]string{"given_name": "Ada", "family_name": "Lovelace", "email": "a@b.c"}

	p, err := f.svc.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc", f.provider.LastAccess)
	assert.Equal(t, "AL", p.Initials())
}

func TestProfile_NotLoggedIn(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Profile(context.Background())
	require.ErrorIs(t, err, common.ErrMustReauthenticate)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, "a@b.c", goodPassword))

	require.NoError(t, f.svc.DeleteAccount(ctx))
	assert.Equal(t, 1, f.provider.DeleteCalls)
	assert.Equal(t, 1, f.local.Resets)
	c, _ := f.store.Load(ctx)
	assert.True(t, c.IsZero())
	assert.Equal(t, LoginView, f.svc.View())
}

func TestDeleteAccount_WithoutTokenMustReauth(t *testing.T) {
	f := newFixture()
	err := f.svc.DeleteAccount(context.Background())
	require.ErrorIs(t, err, common.ErrMustReauthenticate)
	assert.Zero(t, f.provider.DeleteCalls)
}

func TestDeleteAccount_RemoteFailureKeepsCredential(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, "a@b.c", goodPassword))
	f.provider.DeleteErr = errors.New("network")

	require.Error(t, f.svc.DeleteAccount(ctx))
	c, _ := f.store.Load(ctx)
	assert.False(t, c.IsZero())
	assert.Zero(t, f.local.Resets)
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "verification", VerificationView.String())
	assert.Equal(t, "login", LoginView.String())
}
