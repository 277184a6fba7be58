package assess

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/driftlock/drover/checkpoint"
	"github.com/driftlock/drover/config"
)

// contextBudget caps how many characters of recent assistant output are
// embedded in the assessment prompt. Truncation keeps the tail: the most
// recent output is the most diagnostic of current state.
const contextBudget = 3000

// textSeparator joins the buffered assistant texts in the prompt.
const textSeparator = "\n\n"

const verdictDone = "DONE"

// Assessor turns a window of recent assistant output into a binary
// done / not-done verdict by prompting a resolved backend. It holds no
// state across calls; everything but the network request is a pure
// function of its inputs.
type Assessor struct {
	caller Caller
	creds  config.Credentials
	log    zerolog.Logger
}

// NewAssessor creates an assessor over the given caller and credentials.
func NewAssessor(caller Caller, creds config.Credentials, log zerolog.Logger) *Assessor {
	return &Assessor{caller: caller, creds: creds, log: log}
}

// Assess reports whether the backend judges the task complete. It returns
// false whenever no provider resolves or the call fails in any way: a
// flaky or unconfigured backend must degrade to "assume not done", never
// to a crash or a false completion.
func (a *Assessor) Assess(ctx context.Context, recent []string, cfg checkpoint.Config) bool {
	pc := Resolve(cfg, a.creds)
	if pc == nil {
		a.log.Debug().Msg("no assessment provider resolved, assuming not done")
		return false
	}

	window := tailTruncate(strings.Join(recent, textSeparator), contextBudget)
	prompt := buildVerdictPrompt(window)
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond

	verdict, err := a.caller.Call(ctx, *pc, prompt, timeout)
	if err != nil {
		a.log.Warn().Err(err).
			Str("provider", string(pc.Provider)).
			Str("model", pc.Model).
			Msg("assessment call failed, assuming not done")
		return false
	}

	a.log.Debug().
		Str("provider", string(pc.Provider)).
		Str("verdict", verdict).
		Msg("assessment verdict")

	return verdict == verdictDone
}

// tailTruncate keeps at most max bytes from the end of s, advancing the
// cut to the next rune boundary so the result never starts mid-rune.
func tailTruncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

func buildVerdictPrompt(window string) string {
	var b strings.Builder
	b.WriteString("You are judging whether an autonomous coding agent has finished its assigned task.\n")
	b.WriteString("Below is the agent's most recent output.\n\n")
	b.WriteString("---\n")
	b.WriteString(window)
	b.WriteString("\n---\n\n")
	b.WriteString("Reply with exactly one word: DONE if the task appears complete, NOT_DONE if work remains.")
	return b.String()
}
