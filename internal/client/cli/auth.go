package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/nexuscloud/drivesync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for account details and creates the account. The password
// byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	fullName, err := getSimpleText(a.reader, "Enter full name", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Register(ctx, email, fullName, password); err != nil {
		return err
	}

	fmt.Println("Success! You can now log in.")
	return nil
}

// Login prompts for credentials and authenticates; a failed authentication
// returns the error and the user stays logged out. After a successful login
// deferred deletes are replayed and the root listing is pulled; if that
// fetch fails the session continues against the cached state. The password
// is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, email, password); err != nil {
		return err
	}

	a.userName = email
	a.path = nil

	if err := a.store.ReplayPendingDeletes(ctx); err != nil {
		fmt.Println("Deferred deletes still pending:", err.Error())
	}
	if err := a.Refresh(ctx); err != nil {
		fmt.Println("Working from cached state:", err.Error())
	}
	return nil
}

// Logout drops the session; the cache stays so the next login starts warm.
func (a *App) Logout(ctx context.Context) error {
	a.api.SetTokens("", "")
	a.userName = ""
	a.path = nil
	fmt.Println("Logged out.")
	return nil
}
