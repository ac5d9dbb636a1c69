package control

import (
	"strconv"

	"github.com/carlosprados/pmcontrol/internal/status"
)

// Result is the status code returned across the module boundary.
type Result int32

const (
	Success                    Result = 0
	GeneralError               Result = 1
	InvalidParam               Result = 2
	AlreadyStarted             Result = 3
	NotStarted                 Result = 4
	UnsupportedVersion         Result = 5
	UnsupportedPlatformVersion Result = 6
)

var resultNames = map[Result]string{
	Success:                    "SUCCESS",
	GeneralError:               "GENERAL_ERROR",
	InvalidParam:               "INVALID_PARAM",
	AlreadyStarted:             "ALREADY_STARTED",
	NotStarted:                 "NOT_STARTED",
	UnsupportedVersion:         "UNSUPPORTED_VERSION",
	UnsupportedPlatformVersion: "UNSUPPORTED_PLATFORM_VERSION",
}

func (r Result) String() string {
	if n, ok := resultNames[r]; ok {
		return n
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}

// OptionID identifies a module option for SetOption.
type OptionID int32

const OptionLogLevel OptionID = 0

// fromStatus maps supervisor statuses onto the public taxonomy. Only OK is
// enumerated; everything else is a general error.
func fromStatus(s status.Status) Result {
	switch s {
	case status.OK:
		return Success
	default:
		return GeneralError
	}
}
