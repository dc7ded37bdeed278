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
	"errors"
	"fmt"
	"os"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
)

// ExportError reports a failed export operation. Fatal errors mean the
// destination is permanently unusable and the caller should stop sampling;
// all others leave the destination consistent and can be retried on the next
// tick.
type ExportError struct {
	Op    string
	Path  string
	fatal bool
	err   *cnserrors.StructuredError
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Path, e.err)
}

func (e *ExportError) Unwrap() error {
	return e.err
}

// Fatal reports whether the destination can no longer be written.
func (e *ExportError) Fatal() bool {
	return e.fatal
}

// IsFatal reports whether err, or any error it wraps, makes the export
// destination permanently unusable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.fatal
	}
	return fatalCause(err)
}

func newExportError(op, path string, cause error) *ExportError {
	fatal := fatalCause(cause)
	code := cnserrors.ErrCodeTransient
	msg := "recoverable write failure"
	if fatal {
		code = cnserrors.ErrCodeUnavailable
		msg = "destination unusable"
	}
	return &ExportError{
		Op:    op,
		Path:  path,
		fatal: fatal,
		err:   cnserrors.WrapWithContext(code, msg, cause, map[string]any{"path": path, "op": op}),
	}
}

// fatalCause classifies raw I/O errors. Disk full, quota, read-only and
// permission errors persist across ticks; a closed or removed destination
// cannot come back under the same handle, nor can one whose tail is in an
// unknown state.
func fatalCause(err error) bool {
	switch {
	case errors.Is(err, os.ErrClosed),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, errDestinationRemoved),
		errors.Is(err, errRollbackFailed):
		return true
	}
	for _, errno := range fatalErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

var (
	errDestinationRemoved = errors.New("export destination was removed")
	errRollbackFailed     = errors.New("partial batch could not be rolled back")
)
