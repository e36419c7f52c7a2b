// Package services contains the application services of the QuickPage
// client. This file defines the authentication form flow: signup, email
// verification, login, and the account operations of a logged-in user.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/errmsg"
	"github.com/dmitrijs2005/quickpage/internal/client/identity"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

// View is the form the user is looking at.
type View int

const (
	LoginView View = iota
	SignupView
	VerificationView
	Authenticated
)

func (v View) String() string {
	switch v {
	case SignupView:
		return "signup"
	case VerificationView:
		return "verification"
	case Authenticated:
		return "authenticated"
	default:
		return "login"
	}
}

// ErrNoPendingVerification is returned by Resend and Verify when no email
// is waiting for confirmation.
var ErrNoPendingVerification = errors.New("no pending verification")

// User-facing notices.
const (
	MsgCodeSent            = "Verification code sent! Please check your email."
	MsgAccountCreated      = "Account created! Please check your email for the verification code."
	MsgCodeResent          = "Verification code resent! Check your email."
	MsgResendFailed        = "Failed to resend code. Please try again."
	MsgVerifyFirst         = "Please verify your email first."
	MsgVerificationExpired = "Verification session expired. Please login to resend code."
)

type SignUpForm struct {
	Email      string
	Password   string
	GivenName  string
	FamilyName string
}

// Credentials installs and reads the live credential.
type Credentials interface {
	Install(ctx context.Context, ts identity.TokenSet, email string, now time.Time) (models.Credential, error)
	AccessToken(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// LocalState is wiped together with the account.
type LocalState interface {
	Reset(ctx context.Context) error
}

// Timer is the part of *time.Timer the flow needs.
type Timer interface {
	Stop() bool
}

// AuthService drives the signup/verify/login forms.
//
// Contract:
//   - SignUp validates the password locally, then registers. An existing
//     account gets a fresh code and moves to verification instead of failing.
//   - Verify confirms the code and logs in with the retained password.
//   - Resend reuses the retained email and fails without one.
//   - Login installs the credential; an unconfirmed account moves to
//     verification.
//   - The pending verification expires after the configured timeout.
type AuthService interface {
	View() View
	Notice() string
	Pending() (models.PendingVerification, bool)
	ShowLogin()
	ShowSignup()
	SignUp(ctx context.Context, form SignUpForm) error
	Verify(ctx context.Context, code string) error
	Resend(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (models.Profile, error)
	DeleteAccount(ctx context.Context) error
	Close()
}

type authService struct {
	provider identity.Provider
	creds    Credentials
	local    LocalState
	timeout  time.Duration
	log      logging.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer

	mu      sync.Mutex
	view    View
	notice  string
	pending *models.PendingVerification
	timer   Timer
	gen     uint64
}

// NewAuthService builds the flow. verificationTimeout caps how long signup
// credentials are retained.
func NewAuthService(provider identity.Provider, creds Credentials, local LocalState, verificationTimeout time.Duration, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{
		provider: provider,
		creds:    creds,
		local:    local,
		timeout:  verificationTimeout,
		log:      log,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
}

func (a *authService) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

func (a *authService) Notice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notice
}

func (a *authService) Pending() (models.PendingVerification, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return models.PendingVerification{}, false
	}
	return *a.pending, true
}

func (a *authService) ShowLogin()  { a.switchTo(LoginView) }
func (a *authService) ShowSignup() { a.switchTo(SignupView) }

// switchTo changes forms and forgets any pending verification.
func (a *authService) switchTo(v View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingLocked()
	a.view = v
	a.notice = ""
}

func (a *authService) clearPendingLocked() {
	a.pending = nil
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// beginVerification retains the credentials and arms the expiry timer.
func (a *authService) beginVerification(email, password, notice string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingLocked()
	a.pending = &models.PendingVerification{Email: email, Password: password, StartedAt: a.now()}
	a.view = VerificationView
	a.notice = notice

	gen := a.gen
	a.timer = a.afterFunc(a.timeout, func() { a.expire(gen) })
}

func (a *authService) expire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.pending == nil {
		return
	}
	a.pending = nil
	a.timer = nil
	a.gen++
	a.view = LoginView
	a.notice = MsgVerificationExpired
	a.log.Info(context.Background(), "verification session expired")
}

func (a *authService) setNotice(v View, notice string) {
	a.mu.Lock()
	a.view = v
	a.notice = notice
	a.mu.Unlock()
}

func (a *authService) SignUp(ctx context.Context, form SignUpForm) error {
	email := strings.TrimSpace(form.Email)
	password := strings.TrimSpace(form.Password)

	if err := ValidatePassword(password); err != nil {
		a.setNotice(SignupView, err.Error())
		return err
	}

	err := a.provider.SignUp(ctx, identity.SignUpInput{
		Email:      email,
		Password:   password,
		GivenName:  strings.TrimSpace(form.GivenName),
		FamilyName: strings.TrimSpace(form.FamilyName),
	})
	switch {
	case err == nil:
		a.log.Info(ctx, "account created", "email", email)
		a.beginVerification(email, password, MsgAccountCreated)
		return nil
	case errors.Is(err, identity.ErrUsernameExists):
		a.log.Info(ctx, "account exists, resending code", "email", email)
		if rerr := a.provider.ResendConfirmationCode(ctx, email); rerr != nil {
			a.log.Warn(ctx, "resend after signup failed", "error", rerr)
			a.setNotice(SignupView, errmsg.Format(rerr))
			return fmt.Errorf("resend code: %w", rerr)
		}
		a.beginVerification(email, password, MsgCodeSent)
		return nil
	default:
		a.setNotice(SignupView, errmsg.Format(err))
		return fmt.Errorf("signup: %w", err)
	}
}

func (a *authService) Verify(ctx context.Context, code string) error {
	p, ok := a.Pending()
	if !ok {
		return ErrNoPendingVerification
	}

	if err := a.provider.ConfirmSignUp(ctx, p.Email, strings.TrimSpace(code)); err != nil {
		a.setNotice(VerificationView, errmsg.Format(err))
		return fmt.Errorf("confirm signup: %w", err)
	}
	a.log.Info(ctx, "email verified", "email", p.Email)

	if p.Password == "" {
		a.switchTo(LoginView)
		return nil
	}
	return a.login(ctx, p.Email, p.Password, VerificationView)
}

func (a *authService) Resend(ctx context.Context) error {
	p, ok := a.Pending()
	if !ok || p.Email == "" {
		a.setNotice(a.View(), MsgResendFailed)
		return ErrNoPendingVerification
	}
	if err := a.provider.ResendConfirmationCode(ctx, p.Email); err != nil {
		a.log.Warn(ctx, "resend failed", "error", err)
		a.setNotice(VerificationView, MsgResendFailed)
		return fmt.Errorf("resend code: %w", err)
	}
	a.setNotice(VerificationView, MsgCodeResent)
	return nil
}

func (a *authService) Login(ctx context.Context, email, password string) error {
	return a.login(ctx, strings.TrimSpace(email), strings.TrimSpace(password), LoginView)
}

func (a *authService) login(ctx context.Context, email, password string, from View) error {
	ts, err := a.provider.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotConfirmed) {
			a.beginVerification(email, password, MsgVerifyFirst)
			return err
		}
		a.setNotice(from, errmsg.Format(err))
		return fmt.Errorf("login: %w", err)
	}

	if _, err := a.creds.Install(ctx, ts, email, a.now()); err != nil {
		return err
	}

	a.mu.Lock()
	a.clearPendingLocked()
	a.view = Authenticated
	a.notice = ""
	a.mu.Unlock()
	return nil
}

func (a *authService) Logout(ctx context.Context) error {
	if err := a.creds.Logout(ctx); err != nil {
		return err
	}
	a.switchTo(LoginView)
	return nil
}

// Profile reads the identity attributes of the logged-in user.
func (a *authService) Profile(ctx context.Context) (models.Profile, error) {
	token, err := a.creds.AccessToken(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	attrs, err := a.provider.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrNotAuthorized) {
			return models.Profile{}, a.reauth(ctx)
		}
		return models.Profile{}, fmt.Errorf("get user: %w", err)
	}
	return models.Profile{
		GivenName:  attrs["given_name"],
		FamilyName: attrs["family_name"],
		Email:      attrs["email"],
	}, nil
}

// DeleteAccount removes the account remotely, then every local trace of it.
func (a *authService) DeleteAccount(ctx context.Context) error {
	token, err := a.creds.AccessToken(ctx)
	if err != nil {
		return a.reauth(ctx)
	}
	if err := a.provider.DeleteUser(ctx, token); err != nil {
		if errors.Is(err, identity.ErrNotAuthorized) {
			return a.reauth(ctx)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	a.log.Info(ctx, "account deleted")

	if err := a.creds.Logout(ctx); err != nil {
		return err
	}
	if a.local != nil {
		if err := a.local.Reset(ctx); err != nil {
			return err
		}
	}
	a.switchTo(LoginView)
	return nil
}

func (a *authService) reauth(ctx context.Context) error {
	if err := a.creds.Logout(ctx); err != nil {
		a.log.Error(ctx, "failed to erase credential", "error", err)
	}
	a.switchTo(LoginView)
	return common.ErrMustReauthenticate
}

// Close stops the verification timer.
func (a *authService) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
