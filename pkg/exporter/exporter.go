// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/sample"
)

// FileTimeLayout is the start-time layout embedded in export file names.
const FileTimeLayout = "20060102_150405"

const tailScanChunk = 4096

// FileName returns the export file path for a run started at start.
func FileName(dir string, start time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("memory_export_%s.csv", start.Format(FileTimeLayout)))
}

// Option configures a CSVExporter.
type Option func(*CSVExporter)

// WithLogger sets the logger used for repair and rollback diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *CSVExporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// destFile is the part of *os.File an open exporter writes through.
type destFile interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Close() error
}

// CSVExporter appends sample batches to a CSV file. Every Append is flushed
// to stable storage before it returns, and a failed Append leaves the file as
// it was before the call.
type CSVExporter struct {
	mu     sync.Mutex
	logger *slog.Logger

	path   string
	file   destFile
	info   os.FileInfo
	rows   uint64
	closed bool
	// broken is set once a failed batch could not be removed; the file
	// tail is then unknown and every later call fails.
	broken error

	wrap    func(*os.File) destFile
	syncDir func(dir string) error
}

// New returns an exporter that is not yet bound to a destination.
func New(opts ...Option) *CSVExporter {
	e := &CSVExporter{
		logger:  slog.Default(),
		wrap:    func(f *os.File) destFile { return f },
		syncDir: syncDir,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open binds the exporter to path, creating the file and its directory if
// needed. The header row is written only when the file is empty; an existing
// file is appended to as is, after dropping any partial trailing row left by
// an interrupted writer. Opening the same path again is a no-op.
func (e *CSVExporter) Open(path string) error {
	if path == "" {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "export path is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return newExportError("open", path, os.ErrClosed)
	}
	if e.broken != nil {
		return newExportError("open", e.path, e.broken)
	}
	if e.file != nil {
		if e.path == path {
			return nil
		}
		return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
			"exporter is already open", map[string]any{"path": e.path, "requested": path})
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newExportError("open", path, err)
	}
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return newExportError("open", path, err)
	}

	if err := e.prepare(f); err != nil {
		_ = f.Close()
		return newExportError("open", path, err)
	}
	if created {
		if err := e.syncDir(dir); err != nil {
			_ = f.Close()
			return newExportError("open", path, fmt.Errorf("failed to sync directory %q: %w", dir, err))
		}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return newExportError("open", path, err)
	}

	e.path = path
	e.file = e.wrap(f)
	e.info = info
	return nil
}

// prepare writes the header to an empty file or repairs the tail of an
// existing one. The check runs under an exclusive file lock so concurrent
// openers write the header at most once.
func (e *CSVExporter) prepare(f *os.File) error {
	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock export file: %w", err)
	}
	defer func() { _ = unlockFile(f) }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size > 0 {
		size, err = e.repairTail(f, size)
		if err != nil {
			return err
		}
	}
	if size > 0 {
		return nil
	}

	header, err := encode([][]string{sample.Header()})
	if err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}
	return f.Sync()
}

// repairTail truncates a trailing row that has no terminating newline and
// returns the new size.
func (e *CSVExporter) repairTail(f *os.File, size int64) (int64, error) {
	buf := make([]byte, tailScanChunk)
	end := size
	for end > 0 {
		start := max(end-tailScanChunk, 0)
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return size, err
		}
		if end == size && chunk[len(chunk)-1] == '\n' {
			return size, nil
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		end = start
	}

	e.logger.Warn("dropping partial row from export file",
		"path", f.Name(), "bytes", size-end)
	if err := f.Truncate(end); err != nil {
		return size, err
	}
	return end, f.Sync()
}

// Append writes one row per record in batch order and syncs the file. On
// failure nothing from the batch remains in the file. Empty batches write
// nothing.
func (e *CSVExporter) Append(batch *sample.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.file == nil {
		return e.fail(newExportError("append", e.path, os.ErrClosed))
	}
	if e.broken != nil {
		return e.fail(newExportError("append", e.path, e.broken))
	}
	if err := e.checkDestination(); err != nil {
		return e.fail(newExportError("append", e.path, err))
	}

	rows := make([][]string, 0, batch.Len())
	for r := range batch.All() {
		rows = append(rows, r.Fields())
	}
	data, err := encode(rows)
	if err != nil {
		return e.fail(newExportError("append", e.path, err))
	}

	info, err := e.file.Stat()
	if err != nil {
		return e.fail(newExportError("append", e.path, err))
	}
	offset := info.Size()

	start := time.Now()
	_, err = e.file.Write(data)
	if err == nil {
		err = e.file.Sync()
	}
	if err != nil {
		if rerr := e.rollback(offset); rerr != nil {
			e.broken = fmt.Errorf("%w: %w", errRollbackFailed, rerr)
			e.logger.Error("export file left with a partial batch",
				"path", e.path, "offset", offset, "error", rerr)
			return e.fail(newExportError("append", e.path, errors.Join(err, e.broken)))
		}
		return e.fail(newExportError("append", e.path, err))
	}

	appendDuration.Observe(time.Since(start).Seconds())
	rowsExported.Add(float64(batch.Len()))
	bytesWritten.Add(float64(len(data)))
	appendTotal.WithLabelValues("success").Inc()
	e.rows += uint64(batch.Len())
	return nil
}

func (e *CSVExporter) fail(err *ExportError) error {
	status := "recoverable"
	if err.Fatal() {
		status = "fatal"
	}
	appendTotal.WithLabelValues(status).Inc()
	return err
}

// rollback removes whatever part of a failed batch reached the file and
// confirms the file is back at offset.
func (e *CSVExporter) rollback(offset int64) error {
	if err := e.file.Truncate(offset); err != nil {
		return err
	}
	info, err := e.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() != offset {
		return fmt.Errorf("file is %d bytes after truncating to %d", info.Size(), offset)
	}
	_ = e.file.Sync()
	return nil
}

// checkDestination detects a file that was deleted or replaced since Open.
func (e *CSVExporter) checkDestination() error {
	info, err := os.Stat(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return errDestinationRemoved
	}
	if err == nil && !os.SameFile(info, e.info) {
		return errDestinationRemoved
	}
	return nil
}

// Close syncs and closes the file. Close is idempotent.
func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.file == nil {
		return nil
	}

	syncErr := e.file.Sync()
	closeErr := e.file.Close()
	e.file = nil
	if err := errors.Join(syncErr, closeErr); err != nil {
		return newExportError("close", e.path, err)
	}
	return nil
}

// Path returns the bound destination, empty before Open.
func (e *CSVExporter) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Rows returns the number of data rows written by this exporter.
func (e *CSVExporter) Rows() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows
}

func encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadFile reads an export file back into records. The header row is
// verified and skipped.
func ReadFile(path string) ([]sample.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(sample.Header())
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !slices.Equal(rows[0], sample.Header()) {
		return nil, fmt.Errorf("unexpected header in %s: %v", path, rows[0])
	}

	records := make([]sample.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := sample.ParseFields(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
