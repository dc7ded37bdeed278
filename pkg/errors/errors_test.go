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

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapWithContext(t *testing.T) {
	cause := errors.New("no space left on device")
	ctx := map[string]any{
		"path": "/var/lib/memtrack/export.csv",
		"rows": 12,
	}

	err := WrapWithContext(ErrCodeUnavailable, "export destination unusable", cause, ctx)

	if err.Code != ErrCodeUnavailable {
		t.Errorf("expected code %s, got %s", ErrCodeUnavailable, err.Code)
	}
	if err.Context["rows"] != 12 {
		t.Errorf("expected rows context to be 12, got %v", err.Context["rows"])
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StructuredError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(ErrCodeNotFound, "process exited"),
			expected: "[NOT_FOUND] process exited",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeTransient, "write failed", errors.New("interrupted system call")),
			expected: "[TRANSIENT] write failed: interrupted system call",
		},
		{
			name:     "context does not change message",
			err:      NewWithContext(ErrCodeTimeout, "read timed out", map[string]any{"pid": 42}),
			expected: "[TIMEOUT] read timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	inner := New(ErrCodeTransient, "short write")
	outer := fmt.Errorf("append: %w", Wrap(ErrCodeUnavailable, "destination gone", inner))

	if got := CodeOf(outer); got != ErrCodeUnavailable {
		t.Errorf("expected outermost code %s, got %s", ErrCodeUnavailable, got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("expected empty code for plain error, got %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code for nil, got %s", got)
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeTransient, "short write")
	outer := fmt.Errorf("append: %w", Wrap(ErrCodeUnavailable, "destination gone", inner))

	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeUnavailable, true},
		{ErrCodeTransient, true},
		{ErrCodeTimeout, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := HasCode(outer, tt.code); got != tt.want {
				t.Errorf("HasCode(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if HasCode(errors.New("plain"), ErrCodeInternal) {
		t.Error("plain error should not carry a code")
	}
}
