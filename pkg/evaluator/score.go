package evaluator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yknld/geminiloop/pkg/errkind"
	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/prompt"
)

// rubricJSON is the scoring call's exact output contract, rendered into
// the system prompt so the model has no ambiguity about field names or
// the category set (spec §6).
const rubricJSON = `{
  "score": <int 0-100>,
  "passed": <bool>,
  "category_scores": {
    "functionality": <int 0-25>,
    "visual_design": <int 0-25>,
    "ux": <int 0-15>,
    "accessibility": <int 0-15>,
    "responsiveness": <int 0-15>,
    "robustness": <int 0-5>
  },
  "issues": [
    {"category": "...", "severity": "critical|high|medium|low", "description": "...", "repro_steps": ["..."], "screenshot_reference": "..."}
  ],
  "fix_suggestions": ["..."],
  "feedback": "..."
}`

// scoringPolicy states the "feature works"/"feature broken"/"untestable"
// bar a category score must be justified against (spec §6 Policy).
const scoringPolicy = `# SCORING POLICY

- "Feature works": credit it only if it was attempted during exploration
  AND produced at least one verification signal (DOM change, text change,
  or URL change).
- "Feature broken": an attempted interaction produced no verification
  signal, OR introduced a new console error, OR triggered a new dialog.
- "Untestable": a feature that exploration never exercised is neither
  credited nor penalized — say so in feedback rather than guessing.

Sum category_scores exactly; it must equal score. Each category score
must stay within its stated maximum.`

// Score runs the single rubric-scored LLM call over an already-completed
// observation (spec §4.10 Scoring phase), and repairs any self-inconsistent
// output deterministically rather than rejecting it outright.
func Score(client llm.Client, task string, obs BrowserObservation) (EvaluationResult, error) {
	systemPrompt := strings.Join([]string{
		prompt.EvaluatorIdentity,
		scoringPolicy,
		"# RUBRIC OUTPUT CONTRACT\n\n" + rubricJSON,
	}, "\n\n")

	userMessage := buildScoringMessage(task, obs)

	images := []llm.Image{}
	if obs.DesktopScreenshot != "" {
		data, err := os.ReadFile(obs.DesktopScreenshot)
		if err != nil {
			return EvaluationResult{}, fmt.Errorf("evaluator: read desktop screenshot: %w", err)
		}
		images = append(images, llm.Image{MIMEType: "image/png", Data: data})
	}
	if obs.MobileScreenshot != "" {
		data, err := os.ReadFile(obs.MobileScreenshot)
		if err != nil {
			return EvaluationResult{}, fmt.Errorf("evaluator: read mobile screenshot: %w", err)
		}
		images = append(images, llm.Image{MIMEType: "image/png", Data: data})
	}

	response, err := client.Chat([]llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userMessage, Images: images},
	})
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluator: scoring chat: %w", err)
	}

	jsonText, err := prompt.ExtractJSON(response)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluator: scoring response: %w", err)
	}

	var parsed scoringPayload
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return EvaluationResult{}, &errkind.ProtocolShape{Detail: fmt.Sprintf("scoring payload decode: %v", err)}
	}

	result := EvaluationResult{
		CategoryScores: parsed.CategoryScores,
		Issues:         parsed.Issues,
		FixSuggestions: parsed.FixSuggestions,
		Feedback:       parsed.Feedback,
		Observations:   obs,
	}
	if result.CategoryScores == nil {
		result.CategoryScores = map[string]int{}
	}
	if result.Issues == nil {
		result.Issues = []EvaluationIssue{}
	}

	warning := normalizeCategoryScores(result.CategoryScores)
	total := 0
	for _, name := range CategoryOrder {
		total += result.CategoryScores[name]
	}
	if parsed.Score != total {
		warning = true
	}

	result.Score = total
	result.Passed = result.Score >= PassingScore

	if warning {
		result.Feedback = strings.TrimSpace(result.Feedback + "\n\n[rubric scores were clamped/recomputed to satisfy sum and per-category bounds]")
	}

	return result, nil
}

// scoringPayload is the raw shape parsed out of the model's response,
// before normalizeCategoryScores enforces the rubric's invariants.
type scoringPayload struct {
	Score          int               `json:"score"`
	Passed         bool              `json:"passed"`
	CategoryScores map[string]int    `json:"category_scores"`
	Issues         []EvaluationIssue `json:"issues"`
	FixSuggestions []string          `json:"fix_suggestions"`
	Feedback       string            `json:"feedback"`
}

// normalizeCategoryScores clamps every category into [0, weight], fills in
// 0 for any category the model omitted, drops any category it doesn't
// recognize, and reports whether any clamp or fill-in fired (spec §6
// "on violation, clamp deterministically and warn").
func normalizeCategoryScores(scores map[string]int) bool {
	warned := false
	for _, name := range CategoryOrder {
		weight := CategoryWeights[name]
		v, ok := scores[name]
		if !ok {
			scores[name] = 0
			warned = true
			continue
		}
		if v < 0 {
			scores[name] = 0
			warned = true
		} else if v > weight {
			scores[name] = weight
			warned = true
		}
	}
	for name := range scores {
		if _, ok := CategoryWeights[name]; !ok {
			delete(scores, name)
			warned = true
		}
	}
	return warned
}

func buildScoringMessage(task string, obs BrowserObservation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\n", task)
	fmt.Fprintf(&sb, "Interactions performed: %v\n", obs.InteractionsPerformed)
	fmt.Fprintf(&sb, "Interaction verification results: %v\n\n", obs.InteractionResults)

	sb.WriteString("Exploration log:\n")
	for _, step := range obs.ExplorationSteps {
		fmt.Fprintf(&sb, "- step %d: tool=%s reasoning=%q verified=%v new_console_errors=%v new_dialogs=%d\n",
			step.Step, step.Tool, step.Reasoning, step.Verification.AnyVerified(),
			step.Verification.NewConsoleErrors, len(step.Verification.NewDialogs))
	}

	if len(obs.ConsoleErrors) > 0 {
		fmt.Fprintf(&sb, "\nConsole errors observed overall: %v\n", obs.ConsoleErrors)
	} else {
		sb.WriteString("\nNo console errors observed.\n")
	}

	sb.WriteString("\nDesktop screenshot and mobile screenshot are attached as images, in that order.\n")
	return sb.String()
}
