package install

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
	"github.com/matzehuels/mpnp/pkg/observability"
)

// HookRunner executes one lifecycle hook command of a package.
type HookRunner interface {
	Run(ctx context.Context, h Hook) error
}

// Hook is a lifecycle hook invocation.
type Hook struct {
	Name    string
	Package string // name@version
	Dir     string // package directory, used as working directory
	Event   string // install, postinstall or prepare
	Command string
}

// runLifecycle runs the declared lifecycle hooks of m in order. Each must
// succeed before the next starts.
func runLifecycle(ctx context.Context, runner HookRunner, dir string, m *manifest.Manifest) (int, error) {
	ran := 0
	for _, event := range manifest.Lifecycle {
		cmd, ok := m.Scripts.Get(event)
		if !ok || strings.TrimSpace(cmd) == "" {
			continue
		}
		h := Hook{Name: m.Name, Package: m.Key(), Dir: dir, Event: event, Command: cmd}

		start := time.Now()
		err := runner.Run(ctx, h)
		observability.Install().OnLifecycle(ctx, h.Package, event, time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return ran, ctx.Err()
			}
			return ran, errors.Wrap(errors.ErrCodeHookExecution, err, "%s hook of %s failed in %s", event, h.Package, dir)
		}
		ran++
	}
	return ran, nil
}

// ShellRunner runs hooks through a shell with the package's executable
// directory prepended to PATH. Output is streamed to the logger line by line.
type ShellRunner struct {
	shell  string
	logger *log.Logger
}

// NewShellRunner returns a ShellRunner using shell (e.g. "sh").
func NewShellRunner(shell string, logger *log.Logger) *ShellRunner {
	if logger == nil {
		logger = log.Default()
	}
	return &ShellRunner{shell: shell, logger: logger}
}

// Run executes h.Command with `<shell> -c` in h.Dir.
func (r *ShellRunner) Run(ctx context.Context, h Hook) error {
	r.logger.Info("running hook", "package", h.Package, "event", h.Event)

	cmd := exec.CommandContext(ctx, r.shell, "-c", h.Command) //nolint:gosec // package-provided command
	cmd.Dir = h.Dir
	cmd.Env = hookEnv(os.Environ(), h)

	logger := r.logger.With("package", h.Package, "event", h.Event)
	stdout := &logWriter{logger: logger, level: log.InfoLevel}
	stderr := &logWriter{logger: logger, level: log.WarnLevel}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	return err
}

// hookEnv merges the hook environment into the process environment.
// PATH gets the package's executable directory prepended.
func hookEnv(sysEnv []string, h Hook) []string {
	overrides := map[string]string{
		"npm_lifecycle_event":  h.Event,
		"npm_lifecycle_script": h.Command,
		"npm_package_name":     h.Name,
	}

	env := make([]string, 0, len(sysEnv)+len(overrides)+1)
	path := ShimDir(h.Dir)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if v != "" {
				path += string(os.PathListSeparator) + v
			}
			continue
		}
		if _, overridden := overrides[k]; overridden {
			continue
		}
		env = append(env, entry)
	}
	env = append(env, "PATH="+path)
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// logWriter forwards complete lines to a logger. Partial lines are buffered
// until the next newline or Flush.
type logWriter struct {
	logger *log.Logger
	level  log.Level

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		sc := bufio.NewScanner(&w.buf)
		for sc.Scan() {
			w.emit(sc.Text())
		}
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	if line == "" {
		return
	}
	w.logger.Log(w.level, line)
}
