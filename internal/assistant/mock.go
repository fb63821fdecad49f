package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// mockLatency keeps the out-of-lock generation window observable in tests
// without slowing them down.
const mockLatency = 10 * time.Millisecond

// MockCoder returns a deterministic placeholder snippet after simulated
// network latency. No real API call is made.
func MockCoder(ctx context.Context, description string) (string, error) {
	if err := sleep(ctx, mockLatency); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"// AUTO-GENERATED PLACEHOLDER\n// Task: %s\n\nfunc solution() error {\n\treturn errNotImplemented\n}\n",
		truncate(description, 80),
	), nil
}

// MockReviewer runs a few heuristics over the snippet and returns a
// checklist of findings.
func MockReviewer(ctx context.Context, description, snippet string) (string, error) {
	if err := sleep(ctx, mockLatency); err != nil {
		return "", err
	}
	var issues []string
	if snippet == "" {
		issues = append(issues, "- No snippet was generated")
	}
	if strings.Contains(snippet, "PLACEHOLDER") {
		issues = append(issues, "- Contains placeholder markers")
	}
	if strings.Contains(snippet, "errNotImplemented") {
		issues = append(issues, "- Not implemented yet")
	}
	if len(issues) > 0 {
		return "Review checklist:\n" + strings.Join(issues, "\n"), nil
	}
	return fmt.Sprintf("Code reviewed for: %s\nIssues: none", truncate(description, 50)), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
