// Package promptbuilder produces the escalation payload sent to the
// upstream repair service from a sanitized error, injecting a
// "recurring error" preamble when the fingerprint has prior history.
package promptbuilder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsguard/errorpilot/internal/model"
)

// MaxAttemptsShown is the default bound on how many prior attempts are
// listed in the recurring-error preamble, used when Build is called with
// maxAttemptsShown <= 0 (e.g. Config.HistoryMaxAttemptsShown unset).
const MaxAttemptsShown = 5

// Build produces the full prompt text for a sanitized error. sanitized must
// already have had sanitize.String/StackTrace/Context applied to every
// field — this package does not sanitize. maxAttemptsShown bounds how many
// prior attempts the recurring-error preamble lists; <= 0 selects
// MaxAttemptsShown.
func Build(sanitized model.ErrorReport, hist model.ErrorHistory, maxAttemptsShown int) string {
	var b strings.Builder

	if maxAttemptsShown <= 0 {
		maxAttemptsShown = MaxAttemptsShown
	}

	if hist.HasHistory {
		writeRecurringPreamble(&b, hist, maxAttemptsShown)
	}

	fmt.Fprintf(&b, "Please analyze and fix the following runtime error:\n\n")
	fmt.Fprintf(&b, "**Error Category:** %s\n", sanitized.Category)
	fmt.Fprintf(&b, "**Event:** %s\n", sanitized.Event)
	fmt.Fprintf(&b, "**Message:** %s\n", sanitized.Message)

	if sanitized.CodeLocation != "" {
		fmt.Fprintf(&b, "**Code Location:** %s\n", sanitized.CodeLocation)
	}

	if sanitized.StackTrace != "" {
		fmt.Fprintf(&b, "\n**Stack Trace:**\n```\n%s\n```\n", sanitized.StackTrace)
	}

	if len(sanitized.Context) > 0 {
		if encoded, err := json.MarshalIndent(sanitized.Context, "", "  "); err == nil {
			fmt.Fprintf(&b, "\n**Additional Context:**\n```json\n%s\n```\n", encoded)
		}
	}

	b.WriteString("\n**Instructions:**\n")
	b.WriteString("1. Analyze the error and identify the root cause\n")
	b.WriteString("2. Implement a fix that addresses the issue\n")
	b.WriteString("3. Ensure the fix doesn't introduce new bugs or break existing functionality\n")
	b.WriteString("4. Add appropriate error handling if needed\n")
	b.WriteString("5. Submit a change request with the fix\n")

	return b.String()
}

func writeRecurringPreamble(b *strings.Builder, hist model.ErrorHistory, maxAttemptsShown int) {
	b.WriteString("**RECURRING ERROR**\n\n")
	fmt.Fprintf(b, "This error has occurred %d time(s)", hist.TotalOccurrences)
	if !hist.FirstSeen.IsZero() {
		fmt.Fprintf(b, ", first seen %s", hist.FirstSeen.Format("2006-01-02T15:04:05Z07:00"))
	}
	b.WriteString(".\n\n")

	attempts := hist.Attempts
	if len(attempts) > maxAttemptsShown {
		attempts = attempts[len(attempts)-maxAttemptsShown:]
	}

	b.WriteString("Prior attempts:\n")
	for _, a := range attempts {
		fmt.Fprintf(b, "- session %s (%s)", a.SessionURL, a.Status)
		if a.PRUrl != "" {
			fmt.Fprintf(b, ", change request: %s", a.PRUrl)
		}
		if a.ResolvedAt != nil {
			fmt.Fprintf(b, ", resolved %s", a.ResolvedAt.Format("2006-01-02"))
		}
		if a.Notes != "" {
			fmt.Fprintf(b, ", notes: %s", a.Notes)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRead the prior sessions above before proceeding. Do not repeat an approach that already failed. Document what is different about this attempt.\n\n")
}
