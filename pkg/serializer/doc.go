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

// Package serializer writes documents as JSON, YAML or a table.
//
// # Destinations
//
// NewFileWriterOrStdout picks the destination from a path:
//   - "" writes to stdout
//   - cm://namespace/name applies a Kubernetes ConfigMap
//   - anything else creates a file
//
//	s, err := serializer.NewFileWriterOrStdout(serializer.FormatYAML, output)
//	if err != nil {
//	    return err
//	}
//	if c, ok := s.(serializer.Closer); ok {
//	    defer c.Close()
//	}
//	return s.Serialize(ctx, snapshot)
//
// # Table Format
//
// Documents implementing TableRenderer are printed as aligned columns:
//
//	PID   NAME      RSS(MB)  MEM%
//	4242  postgres  512.50   3.1250
//
// Anything else is flattened into sorted FIELD/VALUE rows, with nested keys
// joined by dots and slice elements indexed as [i].
//
// # ConfigMaps
//
// ConfigMapWriter uses server-side apply with field manager "memtrack" and
// stores the document under <kind>.<json|yaml|txt>, alongside format and
// timestamp keys. Labels record the document kind and tool version taken
// from the document header.
//
// # HTTP
//
// RespondJSON encodes a response body before writing headers, so handlers
// never send a partial document.
package serializer
