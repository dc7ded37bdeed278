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

package header

import (
	"time"
)

// APIVersion is the schema version of every document memtrack serializes.
const APIVersion = "memtrack.nvidia.com/v1"

// Metadata keys shared by all kinds.
const (
	MetadataTimestamp = "timestamp"
	MetadataVersion   = "version"
	MetadataRunID     = "runId"
	MetadataNode      = "node"
)

// Kind identifies the type of a serialized document.
type Kind string

const (
	KindProcessSnapshot Kind = "ProcessSnapshot"
	KindSystemInfo      Kind = "SystemInfo"
	KindRunSummary      Kind = "RunSummary"
)

func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the Kind is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindProcessSnapshot, KindSystemInfo, KindRunSummary:
		return true
	default:
		return false
	}
}

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithMetadata adds a metadata key-value pair. Empty values are skipped.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if value == "" {
			return
		}
		if h.Metadata == nil {
			h.Metadata = make(map[string]string)
		}
		h.Metadata[key] = value
	}
}

// WithKind sets the Kind.
func WithKind(kind Kind) Option {
	return func(h *Header) {
		h.Kind = kind
	}
}

// WithTimestamp overrides the creation timestamp recorded by New.
func WithTimestamp(ts time.Time) Option {
	return WithMetadata(MetadataTimestamp, ts.UTC().Format(time.RFC3339))
}

// Header carries Kubernetes-style kind, API version and metadata for
// serialized documents.
type Header struct {
	Kind       Kind              `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string            `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// New returns a header of kind for the given tool version, stamped with the
// current time. Options are applied last.
func New(kind Kind, version string, opts ...Option) Header {
	h := Header{
		Kind:       kind,
		APIVersion: APIVersion,
		Metadata: map[string]string{
			MetadataTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if version != "" {
		h.Metadata[MetadataVersion] = version
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// GetKind returns the document kind.
func (h Header) GetKind() Kind {
	return h.Kind
}

// GetMetadata returns the value stored under key, or "".
func (h Header) GetMetadata(key string) string {
	return h.Metadata[key]
}
