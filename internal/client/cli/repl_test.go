package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	fail     bool

	calls []string
}

func (f *fakeExec) isLoggedIn(context.Context) bool { return f.loggedIn }

func (f *fakeExec) Exec(_ context.Context, args []string) error {
	f.calls = append(f.calls, strings.Join(args, " "))
	switch args[0] {
	case "login":
		f.loggedIn = true
	case "logout":
		f.loggedIn = false
	}
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := capturePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login tok",
		"help",
		"",
		"mood   set 4",
		"diary write a good day",
		"sync run",
		"logout",
		"exit",
		"mood set 1",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input), true)

	assert.Equal(t, []string{"login tok", "mood set 4", "diary write a good day", "sync run", "logout"}, exec.calls)
	assert.Contains(t, *out, "mk status> ")
	assert.Contains(t, *out, "Available commands: diary, mood, reflect, sync, login, exit")
	assert.Contains(t, *out, "Available commands: diary, mood, reflect, sync, logout, exit")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_NoPromptAndErrors(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{fail: true}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("mood show\nquit\n")), false)

	assert.Equal(t, []string{"mood show"}, exec.calls)
	assert.Equal(t, []string{"Error: boom", "Bye!"}, *out)
}

func TestRunREPL_StopsAtEOFAndCancel(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("mood show")), false)
	assert.Equal(t, []string{"mood show"}, exec.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("mood show\n")), false)
	assert.Empty(t, exec.calls)
}
