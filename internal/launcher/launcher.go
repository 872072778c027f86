// Package launcher starts an external assistant CLI for a failed PR, either in
// the foreground or in a detached tmux session.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

var ErrEmptyTemplate = errors.New("CLI command template is empty")

// Request describes one launch. Template placeholders: {context}, {repo},
// {number}, {pr_url}.
type Request struct {
	Template string
	Context  string
	Repo     string
	Number   int
	PRURL    string
}

// Preamble introduces the repository and PR ahead of the diagnosis context.
func Preamble(repo string, number int, prURL string) string {
	return fmt.Sprintf(`Use the CI failure analysis workflow to investigate the following CI failure.

Repository: %s
PR: #%d
Link: %s

Do not push changes directly. Propose fixes first and wait for confirmation before acting.

`, repo, number, prURL)
}

// BuildArgs tokenises the template and substitutes placeholders inside each
// argument. No shell is involved, so substituted values need no quoting.
func BuildArgs(req Request) ([]string, error) {
	tmpl := strings.TrimSpace(req.Template)
	if tmpl == "" {
		return nil, ErrEmptyTemplate
	}
	tokens, err := shlex.Split(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyTemplate
	}

	r := strings.NewReplacer(
		"{context}", Preamble(req.Repo, req.Number, req.PRURL)+req.Context,
		"{repo}", req.Repo,
		"{number}", strconv.Itoa(req.Number),
		"{pr_url}", req.PRURL,
	)
	args := make([]string, len(tokens))
	for i, tok := range tokens {
		args[i] = r.Replace(tok)
	}
	return args, nil
}

// runner executes a helper command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Launcher struct {
	useTmux       bool
	sessionPrefix string
	logger        *slog.Logger
	run           runner
}

func New(useTmux bool, sessionPrefix string, logger *slog.Logger) *Launcher {
	if sessionPrefix == "" {
		sessionPrefix = "prwatch"
	}
	return &Launcher{
		useTmux:       useTmux,
		sessionPrefix: sessionPrefix,
		logger:        logger,
		run:           execRunner,
	}
}

// UseTmux reports whether launches go to a detached tmux session.
func (l *Launcher) UseTmux() bool {
	return l.useTmux
}

// Command builds the foreground process for req. The caller attaches stdio.
func (l *Launcher) Command(ctx context.Context, req Request) (*exec.Cmd, error) {
	args, err := BuildArgs(req)
	if err != nil {
		return nil, err
	}
	l.logger.Info("launching CLI", "repo", req.Repo, "pr", req.Number, "cmd", args[0], "context_len", len(req.Context))
	return exec.CommandContext(ctx, args[0], args[1:]...), nil
}

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SessionName is the tmux session used for one PR.
func (l *Launcher) SessionName(repo string, number int) string {
	return fmt.Sprintf("%s-%s-pr-%d", l.sessionPrefix, unsafeSessionChars.ReplaceAllString(repo, "-"), number)
}

// Detached starts req in a new detached tmux session, replacing any previous
// session for the same PR, and returns the session name.
func (l *Launcher) Detached(ctx context.Context, req Request) (string, error) {
	args, err := BuildArgs(req)
	if err != nil {
		return "", err
	}
	session := l.SessionName(req.Repo, req.Number)

	if _, err := l.run(ctx, "tmux", "has-session", "-t", session); err == nil {
		l.logger.Warn("tmux session already exists, killing old session", "session", session)
		if _, killErr := l.run(ctx, "tmux", "kill-session", "-t", session); killErr != nil {
			l.logger.Warn("failed to kill existing tmux session", "session", session, "err", killErr)
		}
	}

	tmuxArgs := append([]string{
		"new-session", "-d",
		"-s", session,
		"-x", "200",
		"-y", "50",
		"-e", "TERM=screen-256color",
		"--",
	}, args...)
	if out, err := l.run(ctx, "tmux", tmuxArgs...); err != nil {
		return "", fmt.Errorf("create tmux session: %w\n%s", err, string(out))
	}

	if _, err := l.run(ctx, "tmux", "set-option", "-t", session, "remain-on-exit", "on"); err != nil {
		l.logger.Warn("failed to set remain-on-exit", "err", err)
	}

	l.logger.Info("CLI started in tmux", "session", session, "repo", req.Repo, "pr", req.Number)
	return session, nil
}
