package olapbench

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// NormalizeTables rewrites each raw table into destDir, dropping exactly one
// trailing delimiter from every record line, and deletes the raw file after a
// successful copy. Each table is written to a temporary name and atomically
// renamed into place, so destDir never holds a half-written table under its
// final name.
func NormalizeTables(suite Suite, rawPaths []string, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &NormalizationError{Table: destDir, Err: err}
	}
	for _, rawPath := range rawPaths {
		name := filepath.Base(rawPath)
		finalPath := filepath.Join(destDir, name)
		if err := normalizeTable(rawPath, finalPath, suite.Delimiter[0]); err != nil {
			return &NormalizationError{Table: name, Err: err}
		}
		if err := os.Remove(rawPath); err != nil {
			return &NormalizationError{Table: name, Err: err}
		}
		Logger.Infof("normalized table %v into %v", name, destDir)
	}
	return nil
}

func normalizeTable(rawPath string, finalPath string, delimiter byte) error {
	raw, err := os.Open(rawPath)
	if err != nil {
		return err
	}
	defer raw.Close()

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), "."+filepath.Base(finalPath)+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = stripTrailingDelimiter(raw, tmp, delimiter)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), finalPath)
}

// stripTrailingDelimiter copies records from r to w, removing one trailing
// delimiter per line if present. Lines already lacking the delimiter pass
// through unchanged, so the rewrite is idempotent.
func stripTrailingDelimiter(r io.Reader, w io.Writer, delimiter byte) error {
	reader := bufio.NewReaderSize(r, 1<<20)
	writer := bufio.NewWriterSize(w, 1<<20)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			record := bytes.TrimSuffix(line, []byte{'\n'})
			record = trimOneDelimiter(record, delimiter)
			if _, werr := writer.Write(record); werr != nil {
				return werr
			}
			if bytes.HasSuffix(line, []byte{'\n'}) {
				if werr := writer.WriteByte('\n'); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return writer.Flush()
}

func trimOneDelimiter(record []byte, delimiter byte) []byte {
	if len(record) > 0 && record[len(record)-1] == delimiter {
		return record[:len(record)-1]
	}
	return record
}
