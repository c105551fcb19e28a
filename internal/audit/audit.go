// Package audit records the runtime decisions a thread makes as it runs:
// capability checks, chain resolutions, and budget escalations. It
// repurposes the teacher's filesystem-permission AuditFinding/AuditReport
// shape for runtime-decision findings, and pairs every recorded finding
// with a structured log line and a per-severity prometheus counter.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Severity mirrors the teacher's three-level AuditSeverity.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Finding is one recorded runtime decision.
type Finding struct {
	CheckID   string    `json:"check_id"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary counts findings by severity, matching the teacher's
// AuditSummary.
type Summary struct {
	Critical int `json:"critical"`
	Warn     int `json:"warn"`
	Info     int `json:"info"`
}

// Report is a point-in-time snapshot of every finding recorded so far.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
	Findings  []Finding `json:"findings"`
}

var findingsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ryeos_audit_findings_total",
		Help: "Count of audit findings recorded, by check id and severity.",
	},
	[]string{"check_id", "severity"},
)

func init() {
	prometheus.MustRegister(findingsTotal)
}

// Log accumulates findings in memory (for ReadTranscript-style retrieval by
// get_status/read_transcript callers), emits a structured slog line per
// finding, and increments the prometheus counter for it.
type Log struct {
	mu       sync.Mutex
	findings []Finding
	logger   *slog.Logger
}

// New builds a Log. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "audit")}
}

// Record appends finding to the log, emits it via slog, and increments its
// severity counter. Timestamp is set if the caller left it zero.
func (l *Log) Record(f Finding) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.findings = append(l.findings, f)
	l.mu.Unlock()

	findingsTotal.WithLabelValues(f.CheckID, string(f.Severity)).Inc()

	level := slog.LevelInfo
	switch f.Severity {
	case SeverityWarn:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, f.Title,
		"check_id", f.CheckID,
		"severity", f.Severity,
		"detail", f.Detail,
		"thread_id", f.ThreadID,
	)
}

// CapabilityDenied records a thread's attempt to use a capability its
// harness rejected.
func (l *Log) CapabilityDenied(threadID, capability, itemID string, cause error) {
	l.Record(Finding{
		CheckID:  "capability.denied",
		Severity: SeverityWarn,
		Title:    "capability check denied",
		Detail:   capability + " " + itemID + ": " + cause.Error(),
		ThreadID: threadID,
	})
}

// ChainResolutionFailed records a tool call whose primitive chain failed to
// resolve (missing tool, broken lineage, cycle).
func (l *Log) ChainResolutionFailed(threadID, toolID string, cause error) {
	l.Record(Finding{
		CheckID:  "chain.resolution_failed",
		Severity: SeverityWarn,
		Title:    "chain resolution failed",
		Detail:   toolID + ": " + cause.Error(),
		ThreadID: threadID,
	})
}

// BudgetEscalation records a thread escalating because it exceeded a spend,
// token, or turn limit.
func (l *Log) BudgetEscalation(threadID, reason string) {
	l.Record(Finding{
		CheckID:  "budget.escalation",
		Severity: SeverityCritical,
		Title:    "budget limit escalation",
		Detail:   reason,
		ThreadID: threadID,
	})
}

// Snapshot returns a Report over every finding recorded so far.
func (l *Log) Snapshot() *Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	findings := make([]Finding, len(l.findings))
	copy(findings, l.findings)

	report := &Report{Timestamp: time.Now(), Findings: findings}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			report.Summary.Critical++
		case SeverityWarn:
			report.Summary.Warn++
		case SeverityInfo:
			report.Summary.Info++
		}
	}
	return report
}
