package patchplanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/evaluator"
)

func TestPlanOrdersBySeverity(t *testing.T) {
	eval := evaluator.EvaluationResult{
		Score: 45,
		Issues: []evaluator.EvaluationIssue{
			{Category: "ux", Severity: evaluator.SeverityLow, Description: "spacing is inconsistent"},
			{Category: "functionality", Severity: evaluator.SeverityCritical, Description: "submit button does nothing"},
			{Category: "accessibility", Severity: evaluator.SeverityMedium, Description: "missing alt text"},
		},
		FixSuggestions: []string{"wire up the submit handler"},
	}

	plan := Plan(eval, "index.html")
	require.Equal(t, 45, plan.OriginalScore)
	require.Equal(t, 3, plan.IssuesCount)
	require.Len(t, plan.Files, 3)
	require.Contains(t, plan.Files[0].Description, "critical")
	require.Contains(t, plan.Files[1].Description, "medium")
	require.Contains(t, plan.Files[2].Description, "low")
	require.Contains(t, plan.Instructions, "wire up the submit handler")
}

func TestPlanIsDeterministic(t *testing.T) {
	eval := evaluator.EvaluationResult{
		Issues: []evaluator.EvaluationIssue{
			{Severity: evaluator.SeverityHigh, Description: "a"},
			{Severity: evaluator.SeverityHigh, Description: "b"},
		},
	}
	first := Plan(eval, "index.html")
	second := Plan(eval, "index.html")
	require.Equal(t, first, second)
}
