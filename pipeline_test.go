package olapbench

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const buildScript = `cp gen.template gen
chmod +x gen
`

// Emits two raw tables with a trailing field delimiter on every line, the
// way dbgen and dsdgen do.
const genScript = `#!/bin/sh
sf="$3"
printf '1|alpha|%s|\n2|beta|%s|\n' "$sf" "$sf" > items.tbl
printf '10|x|\n20|y|\n' > users.tbl
`

func makeKitZip(t *testing.T) []byte {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"kit/gen/build.sh":     buildScript,
		"kit/gen/gen.template": genScript,
	} {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetMode(0o644)
		file, err := writer.CreateHeader(header)
		require.Nil(t, err)
		_, err = file.Write([]byte(content))
		require.Nil(t, err)
	}
	require.Nil(t, writer.Close())
	return buf.Bytes()
}

func makeKitServer(t *testing.T, archive []byte, requests *atomic.Int64) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)
	return server
}

func makeKitSuite(url string, archive []byte) Suite {
	sum := sha256.Sum256(archive)
	return Suite{
		Name:            "toy",
		ArchiveURL:      url + "/kit.zip",
		ArchiveSHA256:   hex.EncodeToString(sum[:]),
		SourceSubdir:    "gen",
		BuildCommand:    []string{"sh", "build.sh"},
		Executable:      "gen",
		GenerateCommand: []string{"./gen", "-f", "-s", "{sf}"},
		Delimiter:       "|",
		FileExtension:   "tbl",
		Tables:          []string{"items", "users"},
	}
}

func readDataset(t *testing.T, dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	dataset := make(map[string]string)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.Nil(t, err)
		dataset[entry.Name()] = string(data)
	}
	return dataset
}

func TestPipelineEndToEnd(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	pipeline := &Pipeline{
		Suite:   makeKitSuite(server.URL, archive),
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	err := pipeline.Run("0.1")
	require.Nil(t, err)
	require.Equal(t, int64(1), requests.Load())

	datasetDir := filepath.Join(base, "data", "toy", "sf0.1")
	dataset := readDataset(t, datasetDir)
	require.Equal(t, map[string]string{
		"items.tbl": "1|alpha|0.1\n2|beta|0.1\n",
		"users.tbl": "10|x\n20|y\n",
	}, dataset)

	// Raw tables are transient: consumed and deleted by normalization.
	rawLeftovers, err := filepath.Glob(filepath.Join(base, "work", "toy", "sf0.1", "*", "gen", "*.tbl"))
	require.Nil(t, err)
	require.Empty(t, rawLeftovers)

	// No staging or lock residue next to the dataset.
	entries, err := os.ReadDir(filepath.Join(base, "data", "toy"))
	require.Nil(t, err)
	require.Len(t, entries, 1)
}

func TestPipelineRelativeDirs(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	// The CLI defaults are relative paths; the built executable must still
	// resolve when the generator runs with its own working directory.
	t.Chdir(t.TempDir())
	pipeline := &Pipeline{
		Suite:   makeKitSuite(server.URL, archive),
		DataDir: "data",
		WorkDir: "work",
		Runner:  ExecRunner{},
	}

	require.Nil(t, pipeline.Run("1"))
	dataset := readDataset(t, filepath.Join("data", "toy", "sf1"))
	require.Equal(t, map[string]string{
		"items.tbl": "1|alpha|1\n2|beta|1\n",
		"users.tbl": "10|x\n20|y\n",
	}, dataset)
}

func TestPipelineRejectsInvalidSuite(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	suite := makeKitSuite(server.URL, archive)
	suite.Delimiter = ""
	pipeline := &Pipeline{
		Suite:   suite,
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	err := pipeline.Run("1")
	require.NotNil(t, err)
	require.Equal(t, int64(0), requests.Load())
	require.NoDirExists(t, filepath.Join(base, "data", "toy", "sf1"))
}

func TestPipelineCacheHit(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	pipeline := &Pipeline{
		Suite:   makeKitSuite(server.URL, archive),
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	require.Nil(t, pipeline.Run("1"))
	datasetDir := filepath.Join(base, "data", "toy", "sf1")
	first := readDataset(t, datasetDir)
	downloads := requests.Load()

	// The second invocation must be a pure no-op: no network, no generation,
	// dataset bytes unchanged.
	require.Nil(t, pipeline.Run("1"))
	require.Equal(t, downloads, requests.Load())
	require.Equal(t, first, readDataset(t, datasetDir))
}

func TestPipelineArchiveReusedAcrossScaleFactors(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	pipeline := &Pipeline{
		Suite:   makeKitSuite(server.URL, archive),
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	require.Nil(t, pipeline.Run("1"))
	require.Nil(t, pipeline.Run("2"))
	require.Equal(t, int64(1), requests.Load())

	require.DirExists(t, filepath.Join(base, "data", "toy", "sf1"))
	require.DirExists(t, filepath.Join(base, "data", "toy", "sf2"))
}

func TestPipelineChecksumGate(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	suite := makeKitSuite(server.URL, archive)
	suite.ArchiveSHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	pipeline := &Pipeline{
		Suite:   suite,
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	err := pipeline.Run("0.1")
	var integrityErr *IntegrityError
	require.True(t, errors.As(err, &integrityErr))
	require.NotEqual(t, 0, ExitCode(err))

	// The mismatch aborts before extraction: no dataset directory and no
	// extracted tree.
	require.NoDirExists(t, filepath.Join(base, "data", "toy", "sf0.1"))
	require.NoDirExists(t, filepath.Join(base, "work", "toy", "sf0.1"))
}

func TestPipelineNetworkFailure(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)
	suite := makeKitSuite(server.URL, archive)
	server.Close()

	base := t.TempDir()
	pipeline := &Pipeline{
		Suite:   suite,
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	err := pipeline.Run("1")
	var networkErr *NetworkError
	require.True(t, errors.As(err, &networkErr))
	require.NoDirExists(t, filepath.Join(base, "data", "toy", "sf1"))
}

func TestPipelineGenerationFailure(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	suite := makeKitSuite(server.URL, archive)
	// Replace the generator with one that dies after writing a partial table.
	suite.BuildCommand = []string{
		"sh", "-c",
		"{ echo '#!/bin/sh'; echo 'echo partial > items.tbl'; echo 'exit 3'; } > gen && chmod +x gen",
	}
	pipeline := &Pipeline{
		Suite:   suite,
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	err := pipeline.Run("1")
	var generationErr *GenerationError
	require.True(t, errors.As(err, &generationErr))
	require.Equal(t, 3, ExitCode(err))

	// Partial raw output must never surface as a dataset.
	require.NoDirExists(t, filepath.Join(base, "data", "toy", "sf1"))
}

func TestPipelineLockRejectsConcurrentRun(t *testing.T) {
	var requests atomic.Int64
	archive := makeKitZip(t)
	server := makeKitServer(t, archive, &requests)

	base := t.TempDir()
	pipeline := &Pipeline{
		Suite:   makeKitSuite(server.URL, archive),
		DataDir: filepath.Join(base, "data"),
		WorkDir: filepath.Join(base, "work"),
		Runner:  ExecRunner{},
	}

	lockPath := pipeline.DatasetDir("1") + ".lock"
	require.Nil(t, os.MkdirAll(filepath.Dir(lockPath), 0o755))
	require.Nil(t, os.WriteFile(lockPath, []byte("held\n"), 0o644))

	err := pipeline.Run("1")
	require.NotNil(t, err)
	require.Equal(t, int64(0), requests.Load())

	require.Nil(t, os.Remove(lockPath))
	require.Nil(t, pipeline.Run("1"))
}
