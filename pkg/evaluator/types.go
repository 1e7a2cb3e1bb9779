// Package evaluator implements C10 (Agentic Evaluator): a two-phase
// multimodal observe→act→verify loop over C6, followed by a single
// rubric-scored LLM call.
//
// Grounded on the teacher's pkg/core/prompt Builder/ReAct conventions for
// the loop's prompting discipline, and pkg/llm/gemini.go for the
// multimodal Chat call — both generalized from Falcon's API-testing
// ReAct loop to a browser-driving one.
package evaluator

// Severity orders EvaluationIssue entries for the Patch Planner (C9).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank gives Severity a total order for deterministic sorting;
// lower rank sorts first (most severe first).
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns s's sort position; unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// EvaluationIssue is one defect observed during scoring.
type EvaluationIssue struct {
	Category             string   `json:"category"`
	Severity              Severity `json:"severity"`
	Description           string   `json:"description"`
	ReproSteps            []string `json:"repro_steps"`
	ScreenshotReference   string   `json:"screenshot_reference,omitempty"`
}

// RubricVersion is the interoperability-pinned rubric identifier (spec §6).
const RubricVersion = "1.0"

// PassingScore is the rubric's passing threshold.
const PassingScore = 70

// CategoryWeights gives each rubric category's maximum score; sum is 100.
var CategoryWeights = map[string]int{
	"functionality":  25,
	"visual_design":  25,
	"ux":             15,
	"accessibility":  15,
	"responsiveness": 15,
	"robustness":     5,
}

// CategoryOrder is CategoryWeights' keys in the rubric's canonical order,
// used anywhere scores must be rendered or summed deterministically.
var CategoryOrder = []string{
	"functionality", "visual_design", "ux", "accessibility", "responsiveness", "robustness",
}

// EvaluationResult is C10's scoring-phase output.
type EvaluationResult struct {
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	CategoryScores map[string]int   `json:"category_scores"`
	Issues         []EvaluationIssue `json:"issues"`
	FixSuggestions []string         `json:"fix_suggestions"`
	Feedback       string           `json:"feedback"`
	Observations   BrowserObservation `json:"observations"`
}

// BrowserObservation is the full record of the observation phase.
type BrowserObservation struct {
	DesktopScreenshot     string            `json:"desktop_screenshot"`
	MobileScreenshot      string            `json:"mobile_screenshot"`
	ConsoleErrors         []string          `json:"console_errors"`
	DomSnapshot           string            `json:"dom_snapshot"`
	InteractionsPerformed []string          `json:"interactions_performed"`
	InteractionResults    map[string]bool   `json:"interaction_results"`
	ExplorationSteps      []ExplorationStep `json:"exploration_steps"`
}

// ExplorationStep is one step of the bounded exploration loop (spec §4.10).
type ExplorationStep struct {
	Step       int            `json:"step"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args"`
	Reasoning  string         `json:"reasoning"`
	ToolResult any            `json:"tool_result"`
	BeforeState BrowserState  `json:"before_state"`
	AfterState  BrowserState  `json:"after_state"`
	Verification Verification `json:"verification"`

	// FunctionCallsObserved and FunctionResponsesSent back testable
	// property 4 (function-call/response parity): a step is only
	// well-formed when the two are equal.
	FunctionCallsObserved int `json:"function_calls_observed"`
	FunctionResponsesSent int `json:"function_responses_sent"`
}

// InteractiveTarget is one actionable element discovered by the page-side
// salience script (spec §4.10 "Interactive-target discovery").
type InteractiveTarget struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Role     string `json:"role"`
	Text     string `json:"text"`
	Type     string `json:"type"`
}

// BrowserState is a per-phase snapshot used to compute Verification.
type BrowserState struct {
	ScreenshotPath     string              `json:"screenshot_path"`
	VisibleText        string              `json:"visible_text"`
	InteractiveTargets []InteractiveTarget `json:"interactive_targets"`
	ConsoleErrors      []string            `json:"console_errors"`
	DomSignature       string              `json:"dom_signature"`
	URL                string              `json:"url"`
	Dialogs            []Dialog            `json:"dialogs"`
}

// Dialog is one recorded native-dialog invocation, captured by the
// injected dialog wrapper (spec §4.10 step 2).
type Dialog struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Verification is computed by diffing BeforeState/AfterState.
type Verification struct {
	DomChanged       bool     `json:"dom_changed"`
	TextChanged      bool     `json:"text_changed"`
	URLChanged       bool     `json:"url_changed"`
	NewConsoleErrors []string `json:"new_console_errors"`
	NewDialogs       []Dialog `json:"new_dialogs"`
}

// AnyVerified reports whether any of the three primary verification
// signals fired — the policy bar for "feature works" (spec §4.10 Policy).
func (v Verification) AnyVerified() bool {
	return v.DomChanged || v.TextChanged || v.URLChanged
}
