package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilityDenied_RecordsWarnFinding(t *testing.T) {
	l := New(nil)
	l.CapabilityDenied("thread-1", "execute", "proj/tool", errors.New("not permitted"))

	report := l.Snapshot()
	require.Len(t, report.Findings, 1)
	require.Equal(t, SeverityWarn, report.Findings[0].Severity)
	require.Equal(t, "capability.denied", report.Findings[0].CheckID)
	require.Equal(t, "thread-1", report.Findings[0].ThreadID)
	require.Equal(t, 1, report.Summary.Warn)
}

func TestBudgetEscalation_RecordsCriticalFinding(t *testing.T) {
	l := New(nil)
	l.BudgetEscalation("thread-2", "spend limit exceeded")

	report := l.Snapshot()
	require.Len(t, report.Findings, 1)
	require.Equal(t, SeverityCritical, report.Findings[0].Severity)
	require.Equal(t, 1, report.Summary.Critical)
}

func TestChainResolutionFailed_RecordsWarnFinding(t *testing.T) {
	l := New(nil)
	l.ChainResolutionFailed("thread-3", "proj/missing", errors.New("tool not found"))

	report := l.Snapshot()
	require.Len(t, report.Findings, 1)
	require.Equal(t, "chain.resolution_failed", report.Findings[0].CheckID)
}

func TestSnapshot_AccumulatesAcrossCalls(t *testing.T) {
	l := New(nil)
	l.CapabilityDenied("t", "execute", "a", errors.New("x"))
	l.BudgetEscalation("t", "y")
	l.ChainResolutionFailed("t", "z", errors.New("w"))

	report := l.Snapshot()
	require.Len(t, report.Findings, 3)
	require.Equal(t, 1, report.Summary.Critical)
	require.Equal(t, 2, report.Summary.Warn)
}
