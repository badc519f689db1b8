package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Register(ctx context.Context) error
	List(ctx context.Context, args []string) error
	ChangeDir(ctx context.Context, args []string) error
	MakeDir(ctx context.Context, args []string) error
	Put(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Trash(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Star(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
}

const loggedInHelp = "Available commands: (l)s [trash|shared|starred], cd, mkdir, put, " +
	"rename, mv, trash, restore, rm, star, share, retry, refresh, logout, exit"
const loggedOutHelp = "Available commands: register, login, exit"

// runREPL starts a simple read-eval-print loop for the drive CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues;
// a failed command never takes the REPL down.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	report := func(err error) {
		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}

	for {
		printlnFn(fmt.Sprintf("drive %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(loggedInHelp)
			} else {
				printlnFn(loggedOutHelp)
			}

		case "register":
			report(a.Register(ctx))

		case "login":
			report(a.Login(ctx))

		case "l", "ls", "list":
			report(a.List(ctx, args))

		case "cd":
			report(a.ChangeDir(ctx, args))

		case "mkdir":
			report(a.MakeDir(ctx, args))

		case "put":
			report(a.Put(ctx, args))

		case "rename":
			report(a.Rename(ctx, args))

		case "mv", "move":
			report(a.Move(ctx, args))

		case "trash":
			report(a.Trash(ctx, args))

		case "restore":
			report(a.Restore(ctx, args))

		case "rm":
			report(a.Remove(ctx, args))

		case "star", "unstar":
			report(a.Star(ctx, append([]string{cmd}, args...)))

		case "share":
			report(a.Share(ctx, args))

		case "retry":
			report(a.Retry(ctx, args))

		case "refresh", "sync":
			report(a.Refresh(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
