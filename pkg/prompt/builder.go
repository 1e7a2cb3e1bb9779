package prompt

import "strings"

// Builder assembles a complete system prompt from modular sections,
// grounded on the teacher's Builder (pkg/core/prompt/builder.go): identity
// first, then guardrails, then operational workflow, then output format,
// then the tool reference and the dynamic context sections.
type Builder struct {
	identity   string
	guardrails string
	workflow   string
	format     string
	tools      []Tool
}

// NewEvaluatorBuilder preconfigures a Builder with the evaluator's static
// sections; callers pass per-run context sections as arguments to Build.
func NewEvaluatorBuilder() *Builder {
	return &Builder{
		identity:   EvaluatorIdentity,
		guardrails: Guardrails,
		workflow:   Workflow,
		format:     OutputFormat,
		tools:      DefaultTools,
	}
}

// NewPlannerBuilder preconfigures a Builder for the one-shot planner call,
// which has no tools and no exploration workflow.
func NewPlannerBuilder() *Builder {
	return &Builder{identity: PlannerIdentity}
}

// Build concatenates the configured static sections plus any dynamic
// context sections supplied, in a fixed order so the template is stable
// across calls (a requirement for prompt-version pinning in the manifest).
func (b *Builder) Build(contextSections ...string) string {
	var sb strings.Builder
	for _, section := range []string{b.identity, b.guardrails, b.workflow, b.format} {
		if section == "" {
			continue
		}
		sb.WriteString(section)
		sb.WriteString("\n\n")
	}
	if len(b.tools) > 0 {
		sb.WriteString(BuildToolsSection(b.tools))
		sb.WriteString("\n\n")
	}
	for _, section := range contextSections {
		if section == "" {
			continue
		}
		sb.WriteString(section)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
