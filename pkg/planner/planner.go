// Package planner implements C7: one call to a "thinking" LLM that turns a
// user task into a detailed implementation brief for the Code-Generation
// Adapter.
//
// Grounded on the teacher's pkg/llm/gemini.go Chat call combined with the
// pkg/core/prompt Builder/template conventions, generalized from Falcon's
// interactive QA chat turn to a single non-interactive planning call.
package planner

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/prompt"
)

// Brief is the Planner's output: a persisted artifact passed verbatim to
// the Code-Generation Adapter.
type Brief struct {
	Text      string `json:"text"`
	Thinking  string `json:"thinking,omitempty"`
	Skipped   bool   `json:"skipped"`
	Source    string `json:"source"` // "planner" or "notes"
	CreatedAt string `json:"created_at"`
}

// promptTemplate is the versioned template substituted with the task and
// optional notes before being sent as the planner's user turn. Secrets
// referenced via {{...}} are resolved from the process environment only,
// per spec §4.7, and substitution is single-pass (pkg/prompt.Substitute)
// so a secret value can never be re-interpreted as a further placeholder.
const promptTemplate = `Produce a single, detailed implementation brief for the following task.
Be concrete about layout, components, and interactive behavior. Do not include
any commentary outside the brief itself.

Task: {{TASK}}
{{NOTES_SECTION}}`

// Plan runs the planner's one-shot call unless notes is non-empty, in
// which case the planner is skipped entirely and notes is returned
// verbatim as the brief (spec §4.7, §4.11: "the engine never invokes the
// planner if notes was supplied at the boundary").
func Plan(client llm.Client, task, notes string) (Brief, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if strings.TrimSpace(notes) != "" {
		return Brief{Text: notes, Skipped: true, Source: "notes", CreatedAt: now}, nil
	}

	notesSection := ""
	if notes != "" {
		notesSection = fmt.Sprintf("\nAdditional notes: %s\n", notes)
	}

	userTurn := prompt.Substitute(promptTemplate, map[string]string{
		"TASK":          task,
		"NOTES_SECTION": notesSection,
	})

	builder := prompt.NewPlannerBuilder()
	systemPrompt := builder.Build()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: resolveEnvPlaceholders(systemPrompt)},
		{Role: llm.RoleUser, Content: userTurn},
	}

	text, err := client.Chat(messages)
	if err != nil {
		return Brief{}, fmt.Errorf("planner: chat: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Brief{}, fmt.Errorf("planner: empty brief returned")
	}

	return Brief{Text: text, Source: "planner", CreatedAt: now}, nil
}

// envPlaceholderPrefix marks a template placeholder that must resolve from
// the process environment rather than from caller-supplied values — e.g.
// `{{ENV:DOWNSTREAM_API_KEY}}`. Kept distinct from ordinary placeholders
// so a malicious task string cannot smuggle one in and have it resolved;
// only the static system prompt template is scanned.
const envPlaceholderPrefix = "ENV:"

func resolveEnvPlaceholders(systemPrompt string) string {
	values := map[string]string{}
	rest := systemPrompt
	for {
		start := strings.Index(rest, "{{"+envPlaceholderPrefix)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			break
		}
		key := rest[start+2+len(envPlaceholderPrefix) : start+end]
		values[envPlaceholderPrefix+key] = os.Getenv(key)
		rest = rest[start+end:]
	}
	if len(values) == 0 {
		return systemPrompt
	}
	return prompt.Substitute(systemPrompt, values)
}
