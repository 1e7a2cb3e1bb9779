package prompt

import "fmt"

// BuildContextSection generates the dynamic, per-run context block: the
// task under evaluation, the live preview URL, and (after the first
// iteration) a summary of what the previous patch targeted. Grounded on
// the teacher's BuildContextSection session-state block, retargeted from
// ".falcon folder state" to run/iteration state.
func BuildContextSection(task, previewURL string, iteration int, previousPatchSummary string) string {
	out := "# RUN CONTEXT\n\n"
	out += fmt.Sprintf("**Task**: %s\n", task)
	out += fmt.Sprintf("**Preview URL**: %s\n", previewURL)
	out += fmt.Sprintf("**Iteration**: %d\n", iteration)
	if previousPatchSummary != "" {
		out += fmt.Sprintf("**Previous patch targeted**: %s\n", previousPatchSummary)
	}
	return out
}
