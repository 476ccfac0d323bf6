package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/auth"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local) }
	os.Exit(m.Run())
}

type runner struct {
	t  *testing.T
	db string
}

func newRunner(t *testing.T) *runner {
	t.Helper()
	t.Setenv("MOODKEEPER_CONFIG", "")
	return &runner{t: t, db: filepath.Join(t.TempDir(), "m.db")}
}

// run executes one command line against the memory remote and returns
// stdout.
func (r *runner) run(in io.Reader, args ...string) (string, error) {
	r.t.Helper()
	if in == nil {
		in = strings.NewReader("")
	}
	var out, errOut bytes.Buffer
	full := append([]string{"--db", r.db, "--remote", "memory", "--log-level", "error"}, args...)
	err := Execute(context.Background(), full, in, &out, &errOut)
	return out.String(), err
}

func (r *runner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(nil, args...)
	require.NoError(r.t, err)
	return out
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := auth.GenerateToken(uid, []byte("secret"), time.Hour)
	require.NoError(t, err)
	return tok
}

func TestDiaryCommands(t *testing.T) {
	r := newRunner(t)

	out := r.mustRun("diary", "write", "a", "quiet", "day")
	assert.Equal(t, "Saved diary for 2025-03-14 (queued for sync)\n", out)

	out = r.mustRun("diary", "write", "-d", "yesterday", "rain")
	assert.Contains(t, out, "2025-03-13")

	out = r.mustRun("diary", "show")
	assert.Contains(t, out, "2025-03-14")
	assert.Contains(t, out, "a quiet day")

	out = r.mustRun("diary", "show", "2025-01-01")
	assert.Equal(t, "No diary for 2025-01-01\n", out)

	out = r.mustRun("diary", "list")
	assert.Equal(t, "2025-03-14  a quiet day\n2025-03-13  rain\n", out)

	out = r.mustRun("diary", "list", "--days", "-n", "1")
	assert.Equal(t, "2025-03-14\n", out)

	_, err := r.run(nil, "diary", "show", "14/03/2025")
	require.Error(t, err)
}

func TestMoodCommands(t *testing.T) {
	r := newRunner(t)

	out := r.mustRun("mood", "summary")
	assert.Equal(t, "No moods logged\n", out)

	r.mustRun("mood", "set", "5")
	r.mustRun("mood", "set", "1", "--date", "2025-03-13")

	out = r.mustRun("mood", "show")
	assert.Contains(t, out, "2025-03-14")
	assert.Contains(t, out, "5/5")

	out = r.mustRun("mood", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2025-03-14"))

	out = r.mustRun("mood", "summary")
	assert.Equal(t, "50% over the last 2 logged days\n", out)

	_, err := r.run(nil, "mood", "set", "7")
	require.Error(t, err)
	_, err = r.run(nil, "mood", "set", "great")
	require.Error(t, err)
}

func TestReflectCommands(t *testing.T) {
	r := newRunner(t)

	r.mustRun("reflect", "add", "called", "mum")
	r.mustRun("reflect", "add", "-d", "2025-03-10", "long", "walk")

	out := r.mustRun("reflect", "list")
	assert.Contains(t, out, "called mum")

	out = r.mustRun("reflect", "days")
	assert.Equal(t, "2025-03-14\n2025-03-10\n", out)

	_, err := r.run(nil, "reflect", "add", strings.Repeat("word ", 51))
	require.Error(t, err)
}

func TestLoginSyncAndLogout(t *testing.T) {
	r := newRunner(t)

	r.mustRun("mood", "set", "3")
	r.mustRun("diary", "write", "offline")

	out := r.mustRun("sync", "run")
	assert.Equal(t, "retry: sent 0, failed 0 (not signed in)\n", out)

	out = r.mustRun("login", token(t, "u1"))
	assert.Equal(t, "Signed in as u1\n", out)

	out = r.mustRun("sync", "status")
	assert.Contains(t, out, "pending 2, sent 0, failed 0")

	out = r.mustRun("sync", "run")
	assert.Equal(t, "success: sent 2, failed 0\n", out)

	out = r.mustRun("mood", "set", "4")
	assert.Contains(t, out, "(synced)")

	out = r.mustRun("sync", "status")
	assert.Contains(t, out, "pending 0, sent 3, failed 0")

	out = r.mustRun("sync", "requeue")
	assert.Equal(t, "Requeued 0 operation(s)\n", out)

	out = r.mustRun("logout")
	assert.Equal(t, "Signed out\n", out)
	out = r.mustRun("mood", "set", "2")
	assert.Contains(t, out, "queued")
}

func TestLogin_TokenFromInput(t *testing.T) {
	r := newRunner(t)

	out, err := r.run(strings.NewReader(token(t, "u7")+"\n"), "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as u7")

	_, err = r.run(strings.NewReader("not-a-token\n"), "login")
	require.Error(t, err)

	_, err = r.run(strings.NewReader(""), "login")
	require.Error(t, err)
}

func TestShell(t *testing.T) {
	capturePrintln(t)
	r := newRunner(t)

	in := strings.NewReader("mood set 2\nmood show\nbogus\nexit\n")
	out, err := r.run(in, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved mood")
	assert.Contains(t, out, "2/5")
}

func TestExecute_ConfigErrors(t *testing.T) {
	r := newRunner(t)

	_, err := r.run(nil, "--remote", "carrier-pigeon", "mood", "show")
	require.Error(t, err)

	_, err = r.run(nil, "--log-format", "xml", "mood", "show")
	require.Error(t, err)
}

func TestResolveDate(t *testing.T) {
	for in, want := range map[string]string{
		"":           "2025-03-14",
		"today":      "2025-03-14",
		"Yesterday":  "2025-03-13",
		"2024-02-29": "2024-02-29",
	} {
		got, err := resolveDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := resolveDate("2024-02-30")
	require.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "short", firstLine("  short ", 10))
	assert.Equal(t, "one …", firstLine("one\ntwo", 10))
	assert.Equal(t, "abcd…", firstLine("abcdefgh", 5))
}

func TestGetToken_NonInteractive(t *testing.T) {
	tok, err := GetToken(strings.NewReader("  abc  "), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(tok))
}
