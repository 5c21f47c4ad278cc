// Package recparse implements the tolerant fixed-column parsing engine shared
// by the legacy phase and hypocenter readers. A format is declared as a Spec
// (strict fixed-column decode plus ordered fallback decodes); the scanner
// applies decoders per line and never aborts on a malformed line, emitting a
// FAILED result with a reason code instead.
package recparse

// Status classifies the outcome of parsing one input line.
type Status string

const (
	// StatusOK means the strict decode succeeded with no corrections.
	StatusOK Status = "OK"
	// StatusRecovered means a fallback decoder or a named correction rule was
	// needed to produce the record.
	StatusRecovered Status = "RECOVERED"
	// StatusFailed means no decoder produced a valid record. Failed results
	// never proceed past the parser; they are only counted and logged.
	StatusFailed Status = "FAILED"
)

// Reason is a closed set of failure reason codes. Free-text detail goes in
// Result.Detail; the code itself stays machine-comparable for diagnostics.
type Reason string

const (
	ReasonTooShort       Reason = "too_short"
	ReasonTooFewTokens   Reason = "too_few_tokens"
	ReasonBadNumber      Reason = "bad_number"
	ReasonBadTimestamp   Reason = "bad_timestamp"
	ReasonLatLonRange    Reason = "latlon_out_of_range"
	ReasonTimeOutOfEra   Reason = "time_out_of_era"
	ReasonMissingField   Reason = "missing_field"
	ReasonBadPhase       Reason = "bad_phase"
	ReasonNoPickOnLine   Reason = "no_pick_on_line"
	ReasonUnknownFailure Reason = "unknown_failure"
)
