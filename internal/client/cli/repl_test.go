package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login", nil)
}
func (f *fakeExec) Register(ctx context.Context) error { return f.record("register", nil) }
func (f *fakeExec) List(ctx context.Context, args []string) error {
	return f.record("list", args)
}
func (f *fakeExec) ChangeDir(ctx context.Context, args []string) error {
	return f.record("cd", args)
}
func (f *fakeExec) MakeDir(ctx context.Context, args []string) error {
	return f.record("mkdir", args)
}
func (f *fakeExec) Put(ctx context.Context, args []string) error { return f.record("put", args) }
func (f *fakeExec) Rename(ctx context.Context, args []string) error {
	return f.record("rename", args)
}
func (f *fakeExec) Move(ctx context.Context, args []string) error { return f.record("mv", args) }
func (f *fakeExec) Trash(ctx context.Context, args []string) error {
	return f.record("trash", args)
}
func (f *fakeExec) Restore(ctx context.Context, args []string) error {
	return f.record("restore", args)
}
func (f *fakeExec) Remove(ctx context.Context, args []string) error { return f.record("rm", args) }
func (f *fakeExec) Star(ctx context.Context, args []string) error   { return f.record("star", args) }
func (f *fakeExec) Share(ctx context.Context, args []string) error {
	return f.record("share", args)
}
func (f *fakeExec) Retry(ctx context.Context, args []string) error {
	return f.record("retry", args)
}
func (f *fakeExec) Refresh(ctx context.Context) error { return f.record("refresh", nil) }
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login",
		"help",
		"ls trash",
		"mkdir photos",
		"put /tmp/a.bin",
		"mv a.bin photos",
		"foobar",
		"exit",
	}, "\n"))

	exec := &fakeExec{loggedIn: false}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "status" }, sc)

	wantOrder := []string{"login", "list", "mkdir", "put", "mv"}
	idx := 0
	for _, c := range exec.calls {
		if idx < len(wantOrder) && c == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Fatalf("commands order mismatch: got %v, want subseq %v", exec.calls, wantOrder)
	}
}

func TestRunREPL_ArgsPassedThrough(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader("share report.pdf bob@example.com\nunstar report.pdf\nquit\n")
	exec := &fakeExec{loggedIn: true}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "s" }, sc)

	if len(exec.calls) != 2 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	if got := exec.args[0]; len(got) != 2 || got[0] != "report.pdf" || got[1] != "bob@example.com" {
		t.Fatalf("share args: %v", got)
	}
	// star receives the command name to distinguish star from unstar.
	if got := exec.args[1]; len(got) != 2 || got[0] != "unstar" || got[1] != "report.pdf" {
		t.Fatalf("star args: %v", got)
	}
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	exec := &fakeExec{}
	sc := bufio.NewScanner(strings.NewReader(""))

	runREPL(context.Background(), exec, func() string { return "" }, sc)

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
