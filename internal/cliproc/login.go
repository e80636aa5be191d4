package cliproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
)

// DefaultLoginTimeout bounds how long we wait for the browser auth flow.
const DefaultLoginTimeout = 5 * time.Minute

const maxCapturedStderr = 400

// Login spawns `codex login --web` and waits for it to exit. When the CLI
// does not know --web, it falls back to bare `codex login`. Interactive
// output is never parsed; secrets contains values redacted from any
// captured stderr before it ends up in an error message.
func (a *Adapter) Login(ctx context.Context, timeout time.Duration, secrets []string) error {
	binary, err := a.Locate(ctx)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	redactor := NewRedactor(secrets)

	webErr := a.runLogin(ctx, binary, []string{"login", "--web"}, timeout, redactor)
	if webErr == nil {
		return nil
	}
	if !isWebFlagUnsupported(webErr) {
		return webErr
	}

	log.Debugf("`login --web` unsupported, falling back to `login`")
	if err := a.runLogin(ctx, binary, []string{"login"}, timeout, redactor); err != nil {
		return err
	}
	return nil
}

func (a *Adapter) runLogin(ctx context.Context, binary string, args []string, timeout time.Duration, redactor *Redactor) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	commandText := fmt.Sprintf("%s %s", binary, strings.Join(args, " "))
	log.Infof("spawning %s", commandText)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindLoginFailed, ctx.Err(),
			"`%s` timed out after %s; complete the browser authorization and retry", commandText, timeout)
	}
	output := redactor.Redact(compactOutput(stderr.String()))
	if output != "" {
		return apperr.Wrap(apperr.KindLoginFailed, err, "`%s` failed: %s", commandText, output)
	}
	return apperr.Wrap(apperr.KindLoginFailed, err, "`%s` failed", commandText)
}

// isWebFlagUnsupported reports whether the error looks like the CLI
// rejecting the --web flag rather than the login itself failing.
func isWebFlagUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "--web") {
		return false
	}
	for _, marker := range []string{
		"unexpected argument",
		"wasn't expected",
		"unknown option",
		"unrecognized option",
		"no such option",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func compactOutput(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if len(cleaned) <= maxCapturedStderr {
		return cleaned
	}
	return cleaned[:maxCapturedStderr] + "..."
}
