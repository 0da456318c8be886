package tool

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the External Tool Driver's backoff schedule: up to
// MaxAttempts tries, exponential backoff bounded by [BaseInterval, MaxInterval],
// jittered (spec.md §4.6).
type RetryPolicy struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultRetryPolicy matches spec.md §4.6: 3 attempts, 1-2s base, 15-30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		BaseInterval: 1500 * time.Millisecond,
		MaxInterval:  20 * time.Second,
	}
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = 2.0
	eb.RandomizationFactor = 0.5 // jitter
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// retryKind is the classifier's verdict: whether the failure is retryable,
// and the one-word reason logged alongside each retry attempt.
type retryKind struct {
	retryable bool
	reason    string
}

// classificationRule is one entry in the retry classification table,
// kept separate from the backoff scheduler. A rule matches when the failed
// invocation's stderr contains one of its substrings (case-sensitive);
// exit codes and structured tool output are not consulted.
type classificationRule struct {
	tool      Tool
	stderrHas []string
	retryable bool
	reason    string
}

var rules = []classificationRule{
	// Network-class failures: retryable regardless of tool.
	{stderrHas: []string{"connection refused"}, retryable: true, reason: "connection refused"},
	{stderrHas: []string{"no such host"}, retryable: true, reason: "dns resolution failed"},
	{stderrHas: []string{"i/o timeout"}, retryable: true, reason: "network timeout"},
	{stderrHas: []string{"TLS handshake timeout"}, retryable: true, reason: "tls handshake timeout"},
	{stderrHas: []string{"EOF"}, retryable: true, reason: "connection reset"},
	{stderrHas: []string{"500 Internal Server Error", "502 Bad Gateway", "503 Service Unavailable", "504 Gateway Timeout"},
		retryable: true, reason: "transient server error"},

	// Helm-specific transient conditions.
	{tool: ToolHelm, stderrHas: []string{"failed to fetch"}, retryable: true, reason: "chart repository unreachable"},
	{tool: ToolHelm, stderrHas: []string{"another operation (install/upgrade/rollback) is in progress"},
		retryable: true, reason: "concurrent helm operation"},

	// Non-retryable: explicit validation/semantic failures.
	{tool: ToolHelm, stderrHas: []string{"chart not found"}, retryable: false, reason: "chart not found"},
	{tool: ToolHelm, stderrHas: []string{"YAML parse error", "error converting YAML"}, retryable: false, reason: "manifest syntax error"},
	{tool: ToolKubectl, stderrHas: []string{"Forbidden", "forbidden"}, retryable: false, reason: "rbac forbidden"},
	{tool: ToolKubectl, stderrHas: []string{"error validating"}, retryable: false, reason: "manifest validation error"},
}

// classify returns the matched rule's verdict, or nil when no rule matches
// (in which case the caller treats the failure as non-retryable — an
// unrecognized failure should surface immediately rather than silently
// retry three times for no reason).
func classify(which Tool, res *Result, _ error) *retryKind {
	if res == nil {
		return nil
	}
	for _, rule := range rules {
		if rule.tool != ToolAny && rule.tool != which {
			continue
		}
		for _, needle := range rule.stderrHas {
			if strings.Contains(res.Stderr, needle) {
				return &retryKind{retryable: rule.retryable, reason: rule.reason}
			}
		}
	}
	// Connection-class errors can also surface as a noted "exit status"
	// with empty structured stderr (e.g. DNS failure before the tool even
	// starts producing output) — exit code 1 with empty stderr is still
	// treated as non-retryable by default, surfacing fast rather than
	// burning three attempts on a deterministic failure.
	return nil
}
