package contract

import "errors"

var (
	// Terminal: no descriptor registered, retrying cannot help.
	ErrUnsupportedVendor = errors.New("unsupported vendor")
	// Transient: vendor endpoint rejected or returned a bad shape.
	ErrVendorSubmission = errors.New("vendor submission failed")
	// Transient: voice flow finished without a usable capture.
	ErrVoiceCapture = errors.New("voice capture failed")
	// Terminal: the telephony provider refused to set up the call.
	ErrCallPlacement = errors.New("call placement rejected")
	// Transient: deadline elapsed with no correlated result.
	ErrCaptureTimeout = errors.New("no rma captured before deadline")
	// Transient: A2A delivery problem.
	ErrTransport = errors.New("a2a delivery failed")
	// Terminal: caller bug, report is missing required fields.
	ErrMalformedReport = errors.New("malformed failure report")

	ErrRMANotFound = errors.New("rma request not found")
	ErrValidation  = errors.New("validation failed")
)
