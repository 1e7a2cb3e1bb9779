package prompt

// Workflow describes the evaluator's operational pattern across the
// per-run setup, the bounded exploration loop, and the terminal scoring
// call. Grounded on the teacher's workflow.go decision-tree style,
// rewritten around spec §4.10's observe→act→verify sequence instead of
// an API-testing decision tree.
const Workflow = `# OPERATIONAL WORKFLOW

## Per-run setup (already performed before you see this prompt)
- The page has been navigated to the preview URL.
- A desktop screenshot (1440x900) and a DOM snapshot have been captured.
- Native dialogs (alert/confirm/prompt) are neutralized; they will never
  block your interactions.

## Exploration loop (your job)
For each step:
1. Look at the before-screenshot and the visible text/interactive targets
   you were given.
2. Pick the single interaction that would most efficiently confirm or
   refute a feature (click a nav link, submit a form, toggle a control).
3. Call exactly one tool for that interaction.
4. On your next turn you will be shown what changed (or didn't) — use
   that to decide your next step.
5. Stop exploring (call finish_exploration) once you've covered the
   site's primary features, or if nothing new is left to try.

## Scoring call (separate, final turn)
You will be asked once, at the end, to score the page against a fixed
rubric using everything you observed during exploration — not just the
final screenshot. Be specific in citing which interaction produced which
evidence.
`
