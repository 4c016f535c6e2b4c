// Package internaldefs holds the shared metric name table used by the
// exporters. It is not part of the public API.
package internaldefs

import (
	tokengate "github.com/mfreitas/tokengate"
)

// CounterDef binds a [tokengate.MetricID] to its exposition name.
type CounterDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram [tokengate.MetricID] to its exposition
// name.
type HistogramDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: tokengate.MetricLoginSuccess, Name: "tokengate_login_success_total", Help: "Successful login attempts."},
	{ID: tokengate.MetricLoginFailure, Name: "tokengate_login_failure_total", Help: "Failed login attempts."},
	{ID: tokengate.MetricLoginRateLimited, Name: "tokengate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: tokengate.MetricAuthSuccess, Name: "tokengate_auth_success_total", Help: "Accepted access tokens."},
	{ID: tokengate.MetricAuthFailure, Name: "tokengate_auth_failure_total", Help: "Rejected access tokens."},
	{ID: tokengate.MetricRefreshSuccess, Name: "tokengate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tokengate.MetricRefreshFailure, Name: "tokengate_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: tokengate.MetricRefreshReuseDetected, Name: "tokengate_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: tokengate.MetricRefreshRateLimited, Name: "tokengate_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: tokengate.MetricFamilyRevoked, Name: "tokengate_family_revoked_total", Help: "Family revocations triggered by reuse."},
	{ID: tokengate.MetricRateLimitHit, Name: "tokengate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: tokengate.MetricTokenIssued, Name: "tokengate_token_issued_total", Help: "Refresh records created."},
	{ID: tokengate.MetricLogout, Name: "tokengate_logout_total", Help: "Single-token logout operations."},
	{ID: tokengate.MetricLogoutAll, Name: "tokengate_logout_all_total", Help: "Logout-all operations."},
	{ID: tokengate.MetricTokensPurged, Name: "tokengate_tokens_purged_total", Help: "Expired refresh records deleted by cleanup."},
	{ID: tokengate.MetricCleanupRun, Name: "tokengate_cleanup_run_total", Help: "Cleanup passes completed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tokengate.MetricAuthenticateLatency, Name: "tokengate_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are identifier-safe forms of the bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
