package olapbench

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/cpu"
)

// EnsureArchive makes sure a verified copy of the toolkit archive exists at
// path. A local copy that already matches the expected checksum is reused
// without any network I/O; otherwise the archive is downloaded and must pass
// verification before it is considered usable.
func EnsureArchive(url string, path string, sha256hex string) error {
	if VerifyChecksum(path, sha256hex) {
		Logger.Infof("archive %v already present and verified", path)
		return nil
	}
	Logger.Infof("downloading archive %v to %v", url, path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	response, err := http.Get(url)
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return &NetworkError{URL: url, Err: fmt.Errorf("unexpected status code %v", response.StatusCode)}
	}
	// The archive is shared across scale factors, so concurrent invocations
	// may race on it. Download to a temporary name and only rename a verified
	// copy into place; the final path never holds partial or corrupt bytes.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, response.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	actual, err := FileSHA256(tmp.Name())
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	if !strings.EqualFold(actual, sha256hex) {
		return &IntegrityError{Path: path, Want: sha256hex, Got: actual}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	return nil
}

// ExtractArchive unpacks the archive into destDir and returns the directory
// holding the generator sources. Most toolkit archives wrap their contents in
// a single top-level directory; that wrapper is skipped when locating
// sourceSubdir. Extraction overwrites existing files, so repeated runs over
// the same tree are safe.
func ExtractArchive(archivePath string, destDir string, sourceSubdir string, runner Runner) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	if err := runner.Run("", nil, "unzip", "-o", "-q", archivePath, "-d", destDir); err != nil {
		return "", err
	}
	direct := filepath.Join(destDir, sourceSubdir)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, nil
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		nested := filepath.Join(destDir, entry.Name(), sourceSubdir)
		if info, err := os.Stat(nested); err == nil && info.IsDir() {
			return nested, nil
		}
	}
	return "", fmt.Errorf("archive %v does not contain %v", archivePath, sourceSubdir)
}

// BuildToolkit compiles the generator inside sourceDir and returns the path
// of the produced executable. Raw tables left over from an earlier generation
// run are swept first so a stale file can never shadow a fresh one. The build
// fans out over the available CPU cores.
func BuildToolkit(suite Suite, sourceDir string, runner Runner) (string, error) {
	if err := sweepRawTables(suite, sourceDir); err != nil {
		return "", &BuildError{Dir: sourceDir, Err: err}
	}
	args := append([]string{}, suite.BuildCommand...)
	args = append(args, fmt.Sprintf("-j%d", buildParallelism()))
	if err := runner.Run(sourceDir, suite.BuildEnv, args...); err != nil {
		return "", &BuildError{Dir: sourceDir, Err: err}
	}
	executable := filepath.Join(sourceDir, suite.Executable)
	if _, err := os.Stat(executable); err != nil {
		return "", &BuildError{Dir: sourceDir, Err: fmt.Errorf("build produced no %v: %w", suite.Executable, err)}
	}
	// The generator runs with its working directory set to sourceDir, so a
	// relative path here would resolve against sourceDir twice.
	absolute, err := filepath.Abs(executable)
	if err != nil {
		return "", &BuildError{Dir: sourceDir, Err: err}
	}
	return absolute, nil
}

func sweepRawTables(suite Suite, sourceDir string) error {
	stale, err := filepath.Glob(filepath.Join(sourceDir, "*."+suite.FileExtension))
	if err != nil {
		return err
	}
	for _, path := range stale {
		Logger.Infof("removing stale raw table %v", path)
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

func buildParallelism() int {
	count, err := cpu.Counts(true)
	if err != nil || count < 1 {
		return runtime.NumCPU()
	}
	return count
}
