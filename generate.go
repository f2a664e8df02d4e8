package olapbench

import (
	"fmt"
	"os"
	"path/filepath"
)

// GenerateRaw invokes the built generator for one scale factor and returns
// the raw table files it produced, one per relation of the suite. The
// generator's exit status is the success signal: file presence alone is never
// trusted, since a failed run can leave partially written tables behind.
func GenerateRaw(suite Suite, executable string, scaleFactor string, workDir string, runner Runner) ([]string, error) {
	args := append([]string{executable}, suite.GenerateArgs(scaleFactor)[1:]...)
	if err := runner.Run(workDir, nil, args...); err != nil {
		return nil, &GenerationError{Suite: suite.Name, ScaleFactor: scaleFactor, Err: err}
	}
	paths := make([]string, 0, len(suite.Tables))
	for _, table := range suite.Tables {
		path := filepath.Join(workDir, suite.TableFile(table))
		if _, err := os.Stat(path); err != nil {
			return nil, &GenerationError{
				Suite:       suite.Name,
				ScaleFactor: scaleFactor,
				Err:         fmt.Errorf("generator exited cleanly but %v is missing: %w", suite.TableFile(table), err),
			}
		}
		paths = append(paths, path)
	}
	return paths, nil
}
