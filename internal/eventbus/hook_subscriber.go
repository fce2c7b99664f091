package eventbus

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// hookLogCap is the byte limit applied to stdout/stderr before they are
// persisted, so a runaway script can't fill the database.
const hookLogCap = 4096

// HookRecorder is the subset of *store.HookRepo the subscriber needs,
// narrowed so tests can fake it without a real database.
type HookRecorder interface {
	ForEvent(eventName string) ([]domain.HookConfig, error)
	RecordResult(id int64, ok bool, autoDisableAfter int) error
	AppendLog(hookID int64, ok bool, stdout, stderr string) error
}

// HookSubscriber runs configured shell scripts in response to events.
// Grounded on the teacher's use of os/exec in internal/core/dependencies
// (binary invocation), generalized here to user-configured scripts run
// under a tightly controlled environment rather than a fixed toolchain.
type HookSubscriber struct {
	repo             HookRecorder
	autoDisableAfter int
	log              zerolog.Logger
}

func NewHookSubscriber(repo HookRecorder, autoDisableAfter int, log zerolog.Logger) *HookSubscriber {
	if autoDisableAfter <= 0 {
		autoDisableAfter = 10
	}
	return &HookSubscriber{repo: repo, autoDisableAfter: autoDisableAfter, log: log.With().Str("component", "hook_subscriber").Logger()}
}

func (h *HookSubscriber) Name() string { return "shell_hook" }

func (h *HookSubscriber) Handle(evt Event) {
	hooks, err := h.repo.ForEvent(evt.Name)
	if err != nil {
		h.log.Error().Err(err).Str("event", evt.Name).Msg("failed to load hooks")
		return
	}
	for _, hook := range hooks {
		h.run(hook, evt)
	}
}

func (h *HookSubscriber) run(hook domain.HookConfig, evt Event) {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, hook.ScriptPath, evt.Name)
	cmd.Dir = "/tmp"
	// Controlled environment: only PATH/HOME and SUBLARR_* pass through, so
	// a hook script can't read unrelated process secrets via os.Environ().
	cmd.Env = controlledEnv(evt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	ok := runErr == nil

	if err := h.repo.RecordResult(hook.ID, ok, h.autoDisableAfter); err != nil {
		h.log.Error().Err(err).Int64("hook_id", hook.ID).Msg("failed to record hook result")
	}
	if err := h.repo.AppendLog(hook.ID, ok, truncate(stdout.String(), hookLogCap), truncate(stderr.String(), hookLogCap)); err != nil {
		h.log.Error().Err(err).Int64("hook_id", hook.ID).Msg("failed to append hook log")
	}
	if !ok {
		h.log.Warn().Err(runErr).Str("script", hook.ScriptPath).Str("event", evt.Name).Msg("hook script failed")
	}
}

func controlledEnv(evt Event) []string {
	env := []string{}
	for _, key := range []string{"PATH", "HOME"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	env = append(env, "SUBLARR_EVENT_NAME="+evt.Name)
	for k, v := range evt.Payload {
		if s, ok := v.(string); ok {
			env = append(env, "SUBLARR_PAYLOAD_"+strings.ToUpper(k)+"="+s)
		}
	}
	return env
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
