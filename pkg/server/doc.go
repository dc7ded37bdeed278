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

// Package server exposes the health, readiness and Prometheus metrics
// endpoints of a running memtrack sampler.
//
// # Endpoints
//
// GET /health - Liveness. Always 200 with {"status": "healthy", "timestamp": "..."}.
//
// GET /ready - Readiness. 200 while the readiness probe passes (the sampler
// is Running), 503 otherwise.
//
// GET /metrics - Prometheus exposition of the memtrack_* collectors.
//
// GET / - Server name, version and route list.
//
// # Request Handling
//
// Every route shares one middleware chain: metrics, request ID, panic
// recovery, rate limiting and logging. Requests accept an optional
// X-Request-Id header in UUID form; anything else is replaced with a
// generated ID, which is echoed back and included in error bodies.
//
// When the token bucket is empty the server answers 429 with a
// Retry-After header:
//
//	{
//	  "code": "RATE_LIMIT_EXCEEDED",
//	  "message": "Rate limit exceeded",
//	  "details": {"limit": 20, "burst": 40},
//	  "requestId": "550e8400-e29b-41d4-a716-446655440000",
//	  "timestamp": "2026-01-02T12:00:00Z",
//	  "retryable": true
//	}
//
// # Usage
//
//	srv := server.New(server.NewConfig(":9090"),
//	    server.WithReadiness(func() bool { return sched.State() == scheduler.StateRunning }))
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
