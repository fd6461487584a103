package internaldefs

import (
	otpgate "github.com/hexleaf/otpgate"
)

// CounterDef ties an engine counter to its exported name and help text.
type CounterDef struct {
	ID   otpgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: otpgate.MetricCodeRequested, Name: "otpgate_code_requested_total", Help: "Codes issued by RequestCode."},
	{ID: otpgate.MetricCodeResent, Name: "otpgate_code_resent_total", Help: "Codes issued by ResendCode."},
	{ID: otpgate.MetricCodeDelivered, Name: "otpgate_code_delivered_total", Help: "Codes handed to the notifier successfully."},
	{ID: otpgate.MetricDeliveryFailed, Name: "otpgate_delivery_failed_total", Help: "Notifier failures, each rolled back."},
	{ID: otpgate.MetricVerifySuccess, Name: "otpgate_verify_success_total", Help: "Codes consumed by a matching verify."},
	{ID: otpgate.MetricVerifyInvalid, Name: "otpgate_verify_invalid_total", Help: "Mismatched or malformed verify attempts."},
	{ID: otpgate.MetricVerifyExpired, Name: "otpgate_verify_expired_total", Help: "Verify attempts against expired codes."},
	{ID: otpgate.MetricVerifyNotFound, Name: "otpgate_verify_not_found_total", Help: "Verify attempts with no active code."},
	{ID: otpgate.MetricVerifyLocked, Name: "otpgate_verify_locked_total", Help: "Verify attempts rejected by an active lockout."},
	{ID: otpgate.MetricRateLimitHit, Name: "otpgate_rate_limit_hit_total", Help: "Issuance requests denied by the throttle."},
	{ID: otpgate.MetricEnumerationMasked, Name: "otpgate_enumeration_masked_total", Help: "Requests answered with a masked fake success."},
	{ID: otpgate.MetricCredentialIssued, Name: "otpgate_credential_issued_total", Help: "Signed credentials minted after verification."},
	{ID: otpgate.MetricRecordsSwept, Name: "otpgate_records_swept_total", Help: "Records removed by the expiry sweep."},
}
