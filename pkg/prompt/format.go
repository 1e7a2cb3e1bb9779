package prompt

// OutputFormat defines the exact reasoning/action structure the
// exploration loop expects from the evaluator LLM — the teacher's
// format.go Thought/ACTION convention, unchanged in shape and retargeted
// from API-testing tools to browser-driver tools.
const OutputFormat = `# OUTPUT FORMAT

## The Observe-Act Cycle

You operate in a loop: **Observe → Think → Act**.

Each turn you receive a screenshot and a text description of the current
page state. Respond with exactly this structure:

` + "```" + `
Thought: [what do I see? what am I testing? what do I expect?]
ACTION: tool_name({"param": "value"})
` + "```" + `

Call exactly one tool per turn. If you believe you have explored enough
to judge the page, call:

` + "```" + `
Thought: [summary of what was covered]
ACTION: finish_exploration({})
` + "```" + `

Do not describe a tool call only in the Thought line — it will not be
executed. Only a line starting with ` + "`ACTION:`" + ` is parsed and run.
`
