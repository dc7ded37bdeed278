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

// Package file parses small line-oriented text files.
//
// It is used by the procfs backend to read /proc/meminfo and
// /proc/<pid>/status as key/value maps:
//
//	p := file.NewParser(file.WithKVDelimiter(":"), file.WithStrictUTF8(false))
//	params, err := p.GetMap("/proc/self/status")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(params["VmRSS"]) // "5120 kB"
//
// Read errors wrap the underlying os error, so callers can test for
// os.ErrNotExist (process exited) and os.ErrPermission.
package file
