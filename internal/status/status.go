// Package status defines the internal result codes passed between the
// supervisor and the control surface.
package status

import "strconv"

// Status is an internal result code. Zero is success, everything else a
// failure.
type Status int

const (
	OK                         Status = 0
	Fail                       Status = -1  // operation failed
	FailCert                   Status = -2  // certificate verification error
	Error                      Status = -3  // general error
	NoEnt                      Status = -4  // no such entry
	Exists                     Status = -5  // entry already exists
	Full                       Status = -6  // table is full
	Perm                       Status = -7  // permission denied
	Inval                      Status = -8  // invalid parameter
	NoMem                      Status = -9  // cannot allocate memory
	NoInit                     Status = -10 // not initialised
	CloudErr                   Status = -11 // error response from cloud
	CloudRateLimit             Status = -12 // rate limited by cloud
	Timeout                    Status = -13
	CodeSignExpired            Status = -14
	CodeSignerMismatch         Status = -15
	CodeSignVerificationFailed Status = -16
	InsufficientBuffer         Status = -17
	Max                        Status = -18
)

var names = map[Status]string{
	OK:                         "ok",
	Fail:                       "fail",
	FailCert:                   "fail_cert",
	Error:                      "error",
	NoEnt:                      "noent",
	Exists:                     "exists",
	Full:                       "full",
	Perm:                       "perm",
	Inval:                      "inval",
	NoMem:                      "nomem",
	NoInit:                     "no_init",
	CloudErr:                   "cloud_err",
	CloudRateLimit:             "cloud_rate_limit",
	Timeout:                    "timeout",
	CodeSignExpired:            "code_sign_expired",
	CodeSignerMismatch:         "code_signer_mismatch",
	CodeSignVerificationFailed: "code_sign_verification_failed",
	InsufficientBuffer:         "insufficient_buffer",
	Max:                        "max",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Succeeded reports whether s is a success.
func (s Status) Succeeded() bool { return s == OK }
