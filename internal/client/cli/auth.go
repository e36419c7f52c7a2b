package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/quickpage/internal/client/identity"
	"github.com/dmitrijs2005/quickpage/internal/client/services"
	"github.com/dmitrijs2005/quickpage/internal/common"
)

// getSimpleText, getPassword and confirm are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var confirm = Confirm

// showNotice prints the auth flow's current notice, falling back to err.
func (a *App) showNotice(err error) {
	if n := a.auth.Notice(); n != "" {
		a.out.Println(n)
		return
	}
	if err != nil {
		a.out.Println("Error:", err.Error())
	}
}

func (a *App) verifyHint() {
	if a.auth.View() == services.VerificationView {
		a.out.Println("Enter the code with 'verify <code>' or type 'resend' for a new one.")
	}
}

// onAuthenticated finishes a login: remember who is logged in and pick the chat.
func (a *App) onAuthenticated(ctx context.Context, email string) {
	a.loggedIn = true
	a.email = email
	a.out.Printf("Logged in as %s\n", email)
	a.startSession(ctx)
}

// SignUp prompts for the account details and registers the user. On success
// the flow waits for the emailed verification code.
func (a *App) SignUp(ctx context.Context) error {
	a.auth.ShowSignup()

	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	given, err := getSimpleText(a.reader, "Enter given name", os.Stdout)
	if err != nil {
		return err
	}
	family, err := getSimpleText(a.reader, "Enter family name", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.auth.SignUp(ctx, services.SignUpForm{
		Email:      email,
		Password:   string(password),
		GivenName:  given,
		FamilyName: family,
	})
	a.showNotice(err)
	a.verifyHint()
	return err
}

// Verify confirms the pending signup with code, prompting for it when empty.
// The retained password logs the user straight in.
func (a *App) Verify(ctx context.Context, code string) error {
	if _, ok := a.auth.Pending(); !ok {
		a.out.Println("Nothing to verify. Type 'signup' or 'login' first.")
		return services.ErrNoPendingVerification
	}
	if code == "" {
		var err error
		if code, err = getSimpleText(a.reader, "Enter verification code", os.Stdout); err != nil {
			return err
		}
	}

	p, _ := a.auth.Pending()
	err := a.auth.Verify(ctx, code)
	switch {
	case err == nil && a.auth.View() == services.Authenticated:
		a.onAuthenticated(ctx, p.Email)
		return nil
	case err == nil:
		a.out.Println("Email verified. Please log in.")
		return nil
	}
	a.showNotice(err)
	return err
}

func (a *App) Resend(ctx context.Context) error {
	err := a.auth.Resend(ctx)
	a.showNotice(err)
	return err
}

// Login prompts the user for credentials and tries to authenticate.
//
// An unconfirmed account moves to verification instead; the password is
// retained by the auth flow so that a successful verify logs in directly.
// The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	a.auth.ShowLogin()

	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, email, string(password)); err != nil {
		a.log.Info(ctx, "login unsuccessful", "error", err)
		if errors.Is(err, identity.ErrUserNotConfirmed) {
			a.showNotice(nil)
			a.verifyHint()
			return err
		}
		a.showNotice(err)
		return err
	}

	a.onAuthenticated(ctx, email)
	return nil
}

// Logout erases the stored credential.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return a.fail(ctx, err)
	}
	a.loggedIn = false
	a.email = ""
	a.out.Println("Logged out.")
	return nil
}

// WhoAmI prints the profile of the logged-in user.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	p, err := a.auth.Profile(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	name := p.GivenName
	if p.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += p.FamilyName
	}
	if name == "" {
		name = p.Email
	}
	a.out.Printf("[%s] %s <%s>\n", p.Initials(), name, p.Email)
	return nil
}

// DeleteAccount removes the account after confirmation.
func (a *App) DeleteAccount(ctx context.Context) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	ok, err := confirm(a.reader, "Delete your account and all chats?", os.Stdout)
	if err != nil || !ok {
		return err
	}
	if err := a.auth.DeleteAccount(ctx); err != nil {
		return a.fail(ctx, err)
	}
	a.loggedIn = false
	a.email = ""
	a.out.Println("Account deleted.")
	return nil
}
