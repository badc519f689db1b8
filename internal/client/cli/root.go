package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// Root runs the interactive loop until the user exits or stdin closes.
func (a *App) Root(ctx context.Context) {
	fmt.Println("Welcome to the drive CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if err := a.Login(ctx); err != nil {
		fmt.Println("Login failed:", err.Error())
	}

	runREPL(ctx, a, a.getStatus, scanner)
}
