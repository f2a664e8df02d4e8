package olapbench

import (
	"fmt"
	"os"
	"path/filepath"
)

// Pipeline prepares the dataset of one benchmark suite at one scale factor:
// fetch and verify the generator toolkit archive, extract it, build the
// generator, run it, and normalize its raw output into the dataset
// directory. The existence of the dataset directory is the sole cache
// signal, and the directory only comes into existence through a final atomic
// rename, so a present directory is always a complete one.
type Pipeline struct {
	Suite   Suite
	DataDir string
	WorkDir string
	Runner  Runner
}

// DatasetDir is where the normalized tables for one scale factor live.
func (p *Pipeline) DatasetDir(scaleFactor string) string {
	return filepath.Join(p.DataDir, p.Suite.Name, "sf"+scaleFactor)
}

func (p *Pipeline) suiteWorkDir(scaleFactor string) string {
	return filepath.Join(p.WorkDir, p.Suite.Name, "sf"+scaleFactor)
}

func (p *Pipeline) archivePath() string {
	return filepath.Join(p.WorkDir, p.Suite.Name, filepath.Base(p.Suite.ArchiveURL))
}

// Run executes the pipeline end to end. It is fail-fast: the first error
// aborts the invocation with no retries and no partial resumption.
func (p *Pipeline) Run(scaleFactor string) error {
	if err := p.Suite.Validate(); err != nil {
		return err
	}
	datasetDir := p.DatasetDir(scaleFactor)
	if dirExists(datasetDir) {
		Logger.Infof("dataset %v already exists, skipping generation", datasetDir)
		return nil
	}

	unlock, err := acquireLock(datasetDir + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	// A concurrent invocation may have finished while we waited on the lock
	// path; the rename that materializes the dataset is atomic, so an
	// existing directory is complete.
	if dirExists(datasetDir) {
		Logger.Infof("dataset %v appeared concurrently, skipping generation", datasetDir)
		return nil
	}

	if err := EnsureArchive(p.Suite.ArchiveURL, p.archivePath(), p.Suite.ArchiveSHA256); err != nil {
		return err
	}
	sourceDir, err := ExtractArchive(p.archivePath(), p.suiteWorkDir(scaleFactor), p.Suite.SourceSubdir, p.Runner)
	if err != nil {
		return err
	}
	executable, err := BuildToolkit(p.Suite, sourceDir, p.Runner)
	if err != nil {
		return err
	}
	rawPaths, err := GenerateRaw(p.Suite, executable, scaleFactor, sourceDir, p.Runner)
	if err != nil {
		return err
	}

	staging := datasetDir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return &NormalizationError{Table: staging, Err: err}
	}
	if err := NormalizeTables(p.Suite, rawPaths, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, datasetDir); err != nil {
		// Losing the rename to a concurrent winner counts as a cache hit.
		if dirExists(datasetDir) {
			_ = os.RemoveAll(staging)
			Logger.Infof("dataset %v was materialized concurrently", datasetDir)
			return nil
		}
		return &NormalizationError{Table: datasetDir, Err: err}
	}
	Logger.Infof("dataset %v is ready", datasetDir)
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// acquireLock creates an exclusive lock file guarding the working and
// dataset paths of one (suite, scale factor) pair. A second invocation for
// the same pair fails instead of racing on the shared directories.
func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another invocation holds %v; remove it if no other run is active", path)
		}
		return nil, err
	}
	_, _ = fmt.Fprintf(file, "%d\n", os.Getpid())
	_ = file.Close()
	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			Logger.Warnf("failed to remove lock file %v: %v", path, err)
		}
	}, nil
}

