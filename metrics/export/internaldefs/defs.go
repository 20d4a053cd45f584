package internaldefs

import (
	stepAuth "github.com/MrEthical07/stepAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   stepAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   stepAuth.MetricID
	Name string
	Help string
}

const AuditDroppedName = "stepauth_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

var CounterDefs = []CounterDef{
	{ID: stepAuth.MetricLoginSuccess, Name: "stepauth_login_success_total", Help: "Successful password logins."},
	{ID: stepAuth.MetricLoginFailure, Name: "stepauth_login_failure_total", Help: "Rejected password logins."},
	{ID: stepAuth.MetricLoginRateLimited, Name: "stepauth_login_rate_limited_total", Help: "Logins rejected by rate limiting."},
	{ID: stepAuth.MetricStepUpRequired, Name: "stepauth_step_up_required_total", Help: "Privileged logins that entered the pending step-up state."},
	{ID: stepAuth.MetricStepUpSuccess, Name: "stepauth_step_up_success_total", Help: "Completed step-up challenges."},
	{ID: stepAuth.MetricStepUpFailure, Name: "stepauth_step_up_failure_total", Help: "Failed step-up attempts."},
	{ID: stepAuth.MetricCodeIssued, Name: "stepauth_code_issued_total", Help: "One-time codes issued."},
	{ID: stepAuth.MetricTokenIssued, Name: "stepauth_token_issued_total", Help: "Verification tokens issued."},
	{ID: stepAuth.MetricTokenConsumed, Name: "stepauth_token_consumed_total", Help: "Verification tokens redeemed."},
	{ID: stepAuth.MetricTokenRejected, Name: "stepauth_token_rejected_total", Help: "Verification tokens rejected as unknown, expired or for another purpose."},
	{ID: stepAuth.MetricSignupSuccess, Name: "stepauth_signup_success_total", Help: "Accounts created through signup."},
	{ID: stepAuth.MetricSignupDuplicate, Name: "stepauth_signup_duplicate_total", Help: "Signups rejected because the email exists."},
	{ID: stepAuth.MetricPasswordResetRequest, Name: "stepauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: stepAuth.MetricPasswordResetSuccess, Name: "stepauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: stepAuth.MetricPasswordChangeSuccess, Name: "stepauth_password_change_success_total", Help: "Completed password changes."},
	{ID: stepAuth.MetricEmailVerified, Name: "stepauth_email_verified_total", Help: "Confirmed email addresses."},
	{ID: stepAuth.MetricRateLimitHit, Name: "stepauth_rate_limit_hit_total", Help: "Requests denied by any rate limit."},
	{ID: stepAuth.MetricResolveSuccess, Name: "stepauth_resolve_success_total", Help: "Requests resolved to an identity."},
	{ID: stepAuth.MetricResolveFailure, Name: "stepauth_resolve_failure_total", Help: "Requests that resolved to no identity or failed."},
	{ID: stepAuth.MetricLogoutAll, Name: "stepauth_logout_all_total", Help: "Logout-all operations."},
	{ID: stepAuth.MetricAccountSuspended, Name: "stepauth_account_suspended_total", Help: "Account suspensions."},
	{ID: stepAuth.MetricRoleChanged, Name: "stepauth_role_changed_total", Help: "Account role changes."},
	{ID: stepAuth.MetricNotifyFailure, Name: "stepauth_notify_failure_total", Help: "Token or code deliveries that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: stepAuth.MetricResolveLatency, Name: "stepauth_resolve_latency_seconds", Help: "Time spent resolving request credentials."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's
// latency buckets.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// BoundSeconds is HistogramBounds without the +Inf bucket, as numbers.
var BoundSeconds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed-size array, truncating or zero
// padding as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
