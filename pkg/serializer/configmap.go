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

package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/NVIDIA/memtrack/pkg/defaults"
	"github.com/NVIDIA/memtrack/pkg/header"
	"github.com/NVIDIA/memtrack/pkg/k8s/client"
)

const (
	fieldManager = "memtrack"
	appName      = "memtrack"
)

// ConfigMapOption configures a ConfigMapWriter.
type ConfigMapOption func(*ConfigMapWriter)

// WithClientFactory replaces the cached process-wide client.
func WithClientFactory(f client.Factory) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		if f != nil {
			w.newClient = f
		}
	}
}

// ConfigMapWriter publishes documents to a ConfigMap with server-side
// apply, creating or replacing its data.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	newClient client.Factory
}

// NewConfigMapWriter returns a writer for namespace/name. Unknown formats
// fall back to JSON.
func NewConfigMapWriter(namespace, name string, format Format, opts ...ConfigMapOption) *ConfigMapWriter {
	w := &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    normalize(format),
		newClient: client.GetKubeClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Serialize renders data and applies it as the ConfigMap's data. The
// ConfigMap carries:
//   - data.<kind>.<json|yaml|txt>: the rendered document
//   - data.format and data.timestamp
//   - app.kubernetes.io labels naming the kind and tool version
func (w *ConfigMapWriter) Serialize(ctx context.Context, data any) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	cs, config, err := w.newClient()
	if err != nil {
		return fmt.Errorf("failed to get kubernetes client: %w", err)
	}

	content, err := marshal(w.format, data)
	if err != nil {
		return err
	}

	kind, version, timestamp := documentInfo(data)
	dataKey := fmt.Sprintf("%s.%s", strings.ToLower(kind), extension(w.format))

	cm := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name":      appName,
			"app.kubernetes.io/component": strings.ToLower(kind),
			"app.kubernetes.io/version":   version,
		}).
		WithData(map[string]string{
			dataKey:     string(content),
			"format":    string(w.format),
			"timestamp": timestamp,
		})

	slog.Info("applying ConfigMap",
		"namespace", w.namespace,
		"name", w.name,
		"format", w.format,
		"auth_method", client.AuthMethod(config))

	// Force takes ownership of fields written by earlier runs on other hosts.
	_, err = cs.CoreV1().ConfigMaps(w.namespace).Apply(ctx, cm, metav1.ApplyOptions{
		FieldManager: fieldManager,
		Force:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to apply ConfigMap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}

// Close is a no-op.
func (w *ConfigMapWriter) Close() error {
	return nil
}

func documentInfo(data any) (kind, version, timestamp string) {
	kind = "snapshot"
	version = "unknown"
	if h, ok := data.(interface {
		GetKind() header.Kind
		GetMetadata(key string) string
	}); ok {
		if k := h.GetKind(); k != "" {
			kind = k.String()
		}
		if v := h.GetMetadata(header.MetadataVersion); v != "" {
			version = v
		}
		timestamp = h.GetMetadata(header.MetadataTimestamp)
	}
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return kind, version, timestamp
}

func extension(f Format) string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTable:
		return "txt"
	default:
		return "json"
	}
}

// parseConfigMapURI splits cm://namespace/name.
func parseConfigMapURI(uri string) (namespace, name string, err error) {
	if !strings.HasPrefix(uri, ConfigMapURIScheme) {
		return "", "", fmt.Errorf("invalid ConfigMap URI: must start with %s", ConfigMapURIScheme)
	}

	namespace, name, ok := strings.Cut(strings.TrimPrefix(uri, ConfigMapURIScheme), "/")
	if !ok {
		return "", "", fmt.Errorf("invalid ConfigMap URI format: expected %snamespace/name, got %s", ConfigMapURIScheme, uri)
	}
	namespace = strings.TrimSpace(namespace)
	name = strings.TrimSpace(name)

	if namespace == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: namespace cannot be empty")
	}
	if name == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: name cannot be empty")
	}
	return namespace, name, nil
}
