package olapbench

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes external tools. The exit status of the tool is the sole
// success signal: a nil error means the process ran to completion with
// status zero.
type Runner interface {
	Run(dir string, env []string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming the tool's output to the
// parent's stdout/stderr so diagnostics are never swallowed.
type ExecRunner struct{}

func (ExecRunner) Run(dir string, env []string, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}
	Logger.Infof("running %v in %v", args, dir)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	go func() { _, _ = io.Copy(os.Stdout, stdout) }()
	go func() { _, _ = io.Copy(os.Stderr, stderr) }()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %v failed: %w", args, err)
	}
	return nil
}
