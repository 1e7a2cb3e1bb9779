// Package patchplanner implements C9: given a failed EvaluationResult
// (score < 70), derive a structured PatchPlan for the Code-Generation
// Adapter (C8).
//
// Grounded on the teacher's diff.go shape (path + action + description)
// and workflow.go's severity-first triage language, generalized from
// "propose_fix" API-diff triage to front-end patch planning.
package patchplanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yknld/geminiloop/pkg/codegen"
	"github.com/yknld/geminiloop/pkg/evaluator"
)

// Plan derives a deterministic PatchPlan from eval: issues are sorted by
// severity (critical > high > medium > low, stable within a tier), and
// each issue becomes one description-only modify entry targeting
// defaultFile; no per-issue target file is inferred (the Scripted adapter
// treats a description-only entry as a natural-language hint rather than a
// mechanical find/replace).
func Plan(eval evaluator.EvaluationResult, defaultFile string) codegen.PatchPlan {
	issues := make([]evaluator.EvaluationIssue, len(eval.Issues))
	copy(issues, eval.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})

	files := make([]codegen.FileChange, 0, len(issues))
	for _, issue := range issues {
		files = append(files, codegen.FileChange{
			Path:        defaultFile,
			Action:      codegen.ActionModify,
			Description: describeIssue(issue),
			Changes:     issue.ReproSteps,
		})
	}

	return codegen.PatchPlan{
		Instructions:                buildInstructions(issues, eval.FixSuggestions),
		Files:                       files,
		OriginalScore:               eval.Score,
		IssuesCount:                 len(eval.Issues),
		FixSuggestionsFromEvaluator: eval.FixSuggestions,
	}
}

func describeIssue(issue evaluator.EvaluationIssue) string {
	return fmt.Sprintf("[%s/%s] %s", issue.Severity, issue.Category, issue.Description)
}

func buildInstructions(issues []evaluator.EvaluationIssue, fixSuggestions []string) string {
	var sb strings.Builder
	sb.WriteString("Fix the following issues, most severe first:\n\n")
	for i, issue := range issues {
		fmt.Fprintf(&sb, "%d. (%s) %s\n", i+1, issue.Severity, issue.Description)
		for _, step := range issue.ReproSteps {
			fmt.Fprintf(&sb, "   - %s\n", step)
		}
	}
	if len(fixSuggestions) > 0 {
		sb.WriteString("\nEvaluator fix suggestions:\n")
		for _, s := range fixSuggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	return sb.String()
}
