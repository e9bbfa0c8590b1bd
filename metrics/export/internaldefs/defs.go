// Package internaldefs holds the shared metric name table used by the
// exporters. It is not part of the public API surface.
package internaldefs

import (
	"github.com/devmoa/authkit"
)

// CounterDef maps one engine counter to an exported metric name.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to an exported metric name.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricLoginNeedOtp, Name: "authkit_login_need_otp_total", Help: "Logins deferred pending an OTP step-up."},
	{ID: authkit.MetricRegisterSuccess, Name: "authkit_register_success_total", Help: "Successful registrations."},
	{ID: authkit.MetricRegisterDuplicate, Name: "authkit_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authkit.MetricOtpIssued, Name: "authkit_otp_issued_total", Help: "Dispatched passcodes."},
	{ID: authkit.MetricOtpVerified, Name: "authkit_otp_verified_total", Help: "Successful passcode verifications."},
	{ID: authkit.MetricOtpMismatch, Name: "authkit_otp_mismatch_total", Help: "Passcode verifications failed on mismatch."},
	{ID: authkit.MetricOtpExpired, Name: "authkit_otp_expired_total", Help: "Passcode verifications failed on expiry."},
	{ID: authkit.MetricOtpRateLimited, Name: "authkit_otp_rate_limited_total", Help: "Rate-limited passcode retries."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authkit.MetricRefreshReuseDetected, Name: "authkit_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authkit.MetricSessionCreated, Name: "authkit_session_created_total", Help: "Created or replaced device sessions."},
	{ID: authkit.MetricSessionRemoved, Name: "authkit_session_removed_total", Help: "Sessions removed by logout."},
	{ID: authkit.MetricDeviceRemoved, Name: "authkit_device_removed_total", Help: "Sessions removed through the device listing."},
	{ID: authkit.MetricSocialRegisterRequired, Name: "authkit_social_register_required_total", Help: "Social logins lacking a linked account."},
	{ID: authkit.MetricSocialRegisterSuccess, Name: "authkit_social_register_success_total", Help: "Successful social registrations."},
	{ID: authkit.MetricValidateFailure, Name: "authkit_validate_failure_total", Help: "Rejected access token validations."},
}

var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricValidateLatency, Name: "authkit_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's fixed buckets, in
// seconds.
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

// HistogramBoundSuffix mirrors HistogramBounds with names usable in
// instrument identifiers.
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

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
