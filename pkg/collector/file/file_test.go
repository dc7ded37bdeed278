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

package file

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestNewParser(t *testing.T) {
	tests := []struct {
		name               string
		opts               []Option
		expectedDelimiter  string
		expectedMaxSize    int
		expectedSkip       bool
		expectedKVDelim    string
		expectedStrictUTF8 bool
	}{
		{
			name:               "default options",
			expectedDelimiter:  "\n",
			expectedMaxSize:    1 << 20,
			expectedSkip:       true,
			expectedKVDelim:    "=",
			expectedStrictUTF8: true,
		},
		{
			name: "all options",
			opts: []Option{
				WithDelimiter(";"),
				WithMaxSize(2048),
				WithSkipComments(false),
				WithKVDelimiter(":"),
				WithStrictUTF8(false),
			},
			expectedDelimiter:  ";",
			expectedMaxSize:    2048,
			expectedSkip:       false,
			expectedKVDelim:    ":",
			expectedStrictUTF8: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.opts...)
			if p.delimiter != tt.expectedDelimiter {
				t.Errorf("delimiter = %q, want %q", p.delimiter, tt.expectedDelimiter)
			}
			if p.maxSize != tt.expectedMaxSize {
				t.Errorf("maxSize = %d, want %d", p.maxSize, tt.expectedMaxSize)
			}
			if p.skipComments != tt.expectedSkip {
				t.Errorf("skipComments = %v, want %v", p.skipComments, tt.expectedSkip)
			}
			if p.kvDelimiter != tt.expectedKVDelim {
				t.Errorf("kvDelimiter = %q, want %q", p.kvDelimiter, tt.expectedKVDelim)
			}
			if p.strictUTF8 != tt.expectedStrictUTF8 {
				t.Errorf("strictUTF8 = %v, want %v", p.strictUTF8, tt.expectedStrictUTF8)
			}
		})
	}
}

func TestGetLines(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		opts     []Option
		expected []string
	}{
		{
			name:     "skips blank lines and trims",
			content:  "  one \n\n two\n   \n",
			expected: []string{"one", "two"},
		},
		{
			name:     "skips comments by default",
			content:  "# header\nvalue\n",
			expected: []string{"value"},
		},
		{
			name:     "keeps comments when disabled",
			content:  "# header\nvalue\n",
			opts:     []Option{WithSkipComments(false)},
			expected: []string{"# header", "value"},
		},
		{
			name:     "custom delimiter",
			content:  "a;b;;c",
			opts:     []Option{WithDelimiter(";")},
			expected: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := NewParser(tt.opts...).GetLines(writeFile(t, tt.content))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(lines, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("got %q, want %q", lines, tt.expected)
			}
		})
	}
}

func TestGetLines_Errors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		if _, err := NewParser().GetLines(""); err == nil {
			t.Error("expected error for empty path")
		}
	})

	t.Run("missing file wraps ErrNotExist", func(t *testing.T) {
		_, err := NewParser().GetLines(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		_, err := NewParser(WithMaxSize(4)).GetLines(writeFile(t, "0123456789"))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum size") {
			t.Errorf("expected size error, got %v", err)
		}
	})

	t.Run("invalid utf8 rejected when strict", func(t *testing.T) {
		_, err := NewParser().GetLines(writeFile(t, "Name:\tbad\xff\n"))
		if err == nil || !strings.Contains(err.Error(), "UTF-8") {
			t.Errorf("expected UTF-8 error, got %v", err)
		}
	})

	t.Run("invalid utf8 accepted when lenient", func(t *testing.T) {
		lines, err := NewParser(WithStrictUTF8(false)).GetLines(writeFile(t, "Name:\tbad\xff\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 1 {
			t.Errorf("expected one line, got %q", lines)
		}
	})
}

func TestGetMap(t *testing.T) {
	content := "Name:\tbash\nVmRSS:\t  5120 kB\nCmd:\ta:b:c\nflag\n"
	m, err := NewParser(WithKVDelimiter(":")).GetMap(writeFile(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"Name":  "bash",
		"VmRSS": "5120 kB",
		"Cmd":   "a:b:c",
		"flag":  "",
	}
	if len(m) != len(expected) {
		t.Fatalf("got %d entries, want %d: %v", len(m), len(expected), m)
	}
	for k, v := range expected {
		if m[k] != v {
			t.Errorf("m[%q] = %q, want %q", k, m[k], v)
		}
	}
}

func TestGetMap_PropagatesGetLinesError(t *testing.T) {
	_, err := NewParser().GetMap(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func BenchmarkGetMap(b *testing.B) {
	path := filepath.Join(b.TempDir(), "status")
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("Key")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(":\t12345 kB\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		b.Fatal(err)
	}
	p := NewParser(WithKVDelimiter(":"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.GetMap(path); err != nil {
			b.Fatal(err)
		}
	}
}
