// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the Prometheus metrics of runs and the read API.
// Metrics are registered on an explicit registry, which the router serves
// at /metrics. All methods are no-ops on a nil *Metrics.
package metrics
