// ABOUTME: Negotiation error taxonomy
// ABOUTME: Step-specific error kinds usable with errors.Is
package hwparams

import "fmt"

// Kind identifies the negotiation step that failed
type Kind int

const (
	NoConfiguration Kind = iota + 1
	ResampleUnsupported
	AccessUnsupported
	FormatUnsupported
	ChannelCountUnsupported
	RateMismatch
	BufferSizeUnsupported
	PeriodSizeUnsupported
	CommitFailed
)

var kindNames = map[Kind]string{
	NoConfiguration:         "no configuration",
	ResampleUnsupported:     "resample unsupported",
	AccessUnsupported:       "access unsupported",
	FormatUnsupported:       "format unsupported",
	ChannelCountUnsupported: "channel count unsupported",
	RateMismatch:            "rate mismatch",
	BufferSizeUnsupported:   "buffer size unsupported",
	PeriodSizeUnsupported:   "period size unsupported",
	CommitFailed:            "commit failed",
}

// Error implements error so a Kind can be used as an errors.Is target
func (k Kind) Error() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a failed negotiation step
type Error struct {
	Kind       Kind
	Message    string // what was being attempted
	Diagnostic string // the device's explanation, if any
	Err        error
}

func (e *Error) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Diagnostic)
	}
	return e.Message
}

// Unwrap returns the device error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a Kind target
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func stepError(kind Kind, err error, format string, args ...interface{}) *Error {
	e := &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
	if err != nil {
		e.Diagnostic = err.Error()
	}
	return e
}
