package install

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	var out bytes.Buffer
	runner := NewShellRunner("sh", log.New(&out))

	err := runner.Run(context.Background(), Hook{
		Name:    "app",
		Package: "app@1.0.0",
		Dir:     dir,
		Event:   "postinstall",
		Command: `echo "$npm_lifecycle_event" > event.txt; echo "$PATH" > path.txt; echo hello from hook`,
	})
	require.NoError(t, err)

	event, err := os.ReadFile(filepath.Join(dir, "event.txt"))
	require.NoError(t, err)
	assert.Equal(t, "postinstall", strings.TrimSpace(string(event)))

	path, err := os.ReadFile(filepath.Join(dir, "path.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(path), ShimDir(dir)+string(os.PathListSeparator)))

	assert.Contains(t, out.String(), "hello from hook")
}

func TestShellRunnerFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	runner := NewShellRunner("sh", log.New(&bytes.Buffer{}))
	err := runner.Run(context.Background(), Hook{Name: "app", Package: "app@1.0.0", Dir: t.TempDir(), Event: "install", Command: "exit 3"})
	assert.Error(t, err)
}

func TestLogWriterSplitsLines(t *testing.T) {
	var out bytes.Buffer
	w := &logWriter{logger: log.New(&out), level: log.InfoLevel}

	w.Write([]byte("first li"))
	assert.Empty(t, out.String(), "partial lines are buffered")

	w.Write([]byte("ne\nsecond\nthird"))
	assert.Contains(t, out.String(), "first line")
	assert.Contains(t, out.String(), "second")
	assert.NotContains(t, out.String(), "third")

	w.Flush()
	assert.Contains(t, out.String(), "third")
}

func TestHookEnv(t *testing.T) {
	env := hookEnv([]string{"PATH=/usr/bin", "HOME=/root", "npm_lifecycle_event=stale"},
		Hook{Name: "app", Dir: "/proj", Event: "install", Command: "make"})

	got := make(map[string]string)
	for _, e := range env {
		k, v, _ := strings.Cut(e, "=")
		got[k] = v
	}
	assert.Equal(t, ShimDir("/proj")+string(os.PathListSeparator)+"/usr/bin", got["PATH"])
	assert.Equal(t, "install", got["npm_lifecycle_event"])
	assert.Equal(t, "make", got["npm_lifecycle_script"])
	assert.Equal(t, "app", got["npm_package_name"])
	assert.Equal(t, "/root", got["HOME"])
}
