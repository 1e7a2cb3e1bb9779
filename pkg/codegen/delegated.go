package codegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/errkind"
)

// DefaultDelegatedTimeout is the wall-clock budget for a Delegated call
// (spec §4.8, §5: "C8 delegated mode 600 s default").
const DefaultDelegatedTimeout = 600 * time.Second

// Delegated invokes the external coding agent as a subprocess, with a hard
// wall-clock timeout. Stdout/stderr are captured; on timeout the subprocess
// is terminated and any files it already wrote remain in workspacePath.
//
// Grounded on the daydemir-ralph executor's subprocess-with-context
// pattern (other_examples/), adapted from Claude Code CLI invocation to a
// binary+args template substituted with task/workspace/requirements.
type Delegated struct {
	// Binary is the agent executable to invoke, e.g. "openhands-cli".
	Binary string
	// ArgsTemplate builds the subprocess argv from the call's inputs;
	// when nil, DefaultArgsTemplate is used.
	ArgsTemplate func(task, workspacePath, detailedRequirements string) []string
	// Timeout overrides DefaultDelegatedTimeout when non-zero.
	Timeout time.Duration
	Log     logr.Logger
}

// NewDelegated returns a Delegated adapter invoking binary with
// DefaultArgsTemplate and DefaultDelegatedTimeout.
func NewDelegated(binary string, log logr.Logger) *Delegated {
	return &Delegated{Binary: binary, Log: log}
}

// DefaultArgsTemplate passes the task and requirements as flags and the
// workspace as the working directory (set by the caller via exec.Cmd.Dir).
func DefaultArgsTemplate(task, _, detailedRequirements string) []string {
	return []string{"--task", task, "--requirements", detailedRequirements}
}

func (d *Delegated) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultDelegatedTimeout
}

func (d *Delegated) argsTemplate() func(string, string, string) []string {
	if d.ArgsTemplate != nil {
		return d.ArgsTemplate
	}
	return DefaultArgsTemplate
}

// GenerateCode runs the agent to produce an initial implementation, then
// diffs the workspace's regular-file listing against what was there before
// the call to report files_generated.
func (d *Delegated) GenerateCode(task, workspacePath, detailedRequirements string) (GenerateResult, error) {
	before, err := walkRegularFiles(workspacePath)
	if err != nil {
		return GenerateResult{}, err
	}
	beforeSet := toSet(before)

	args := d.argsTemplate()(task, workspacePath, detailedRequirements)
	if err := d.run(workspacePath, args); err != nil {
		return GenerateResult{}, err
	}

	after, err := walkRegularFiles(workspacePath)
	if err != nil {
		return GenerateResult{}, err
	}

	var generated []string
	for _, f := range after {
		if !beforeSet[f] {
			generated = append(generated, f)
		}
	}
	return GenerateResult{FilesGenerated: generated}, nil
}

// ApplyPatchPlan hands the patch plan's instructions to the agent verbatim
// and, when the agent exits cleanly, reports the paths listed in plan.Files
// as modified.
func (d *Delegated) ApplyPatchPlan(workspacePath string, plan PatchPlan) (ApplyResult, error) {
	start := time.Now()

	args := d.argsTemplate()(plan.Instructions, workspacePath, plan.Instructions)
	if err := d.run(workspacePath, args); err != nil {
		return ApplyResult{Success: false, Error: err.Error(), DurationSeconds: elapsedSeconds(start)}, nil
	}

	var modified []string
	for _, fc := range plan.Files {
		modified = append(modified, fc.Path)
	}

	return ApplyResult{Success: true, FilesModified: modified, DurationSeconds: elapsedSeconds(start)}, nil
}

func (d *Delegated) run(workspacePath string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Dir = workspacePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	d.Log.V(1).Info("delegated code-generation subprocess finished",
		"binary", d.Binary, "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())

	if ctx.Err() == context.DeadlineExceeded {
		return &errkind.Timeout{Op: fmt.Sprintf("codegen.delegated:%s", d.Binary), Cause: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("codegen: delegated agent exited %d: %s", exitErr.ExitCode(), stderr.String())
		}
		return &errkind.TransportError{Cause: fmt.Errorf("codegen: launch delegated agent: %w", err)}
	}
	return nil
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}
