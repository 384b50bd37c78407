package fbsmslib

import "errors"

// Error kinds. Every error returned by a Client matches one of these with
// errors.Is; ErrBatchAborted also matches the kind of the error that caused
// it.
var (
	// ErrAuthentication means the router rejected the credentials, the
	// challenge could not be answered or the second factor failed.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnsupportedAuth means the router predates the PBKDF2 login.
	ErrUnsupportedAuth = errors.New("router does not support PBKDF2 login")
	// ErrUnsupportedTwoFactor means the router asked for a second factor
	// other than TOTP.
	ErrUnsupportedTwoFactor = errors.New("unsupported second factor")
	// ErrRateLimitExceeded means the local send quota is used up.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCommunication covers network failures and replies that do not
	// match the expected firmware format.
	ErrCommunication = errors.New("router communication failed")
	// ErrInvalidReceiver means a receiver is not a usable phone number.
	ErrInvalidReceiver = errors.New("invalid receiver")
	// ErrRejected means the router refused the request, e.g. a validation
	// error on the message.
	ErrRejected = errors.New("router rejected request")
	// ErrBatchAborted marks recipients that were skipped after a fatal
	// error earlier in the same batch.
	ErrBatchAborted = errors.New("batch aborted")
)

// Error carries the router's literal rejection text in Reason and the
// underlying cause, if any, in Err.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func newError(kind error, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// isFatal reports whether err should stop a batch send. Quota and
// per-recipient problems are not fatal.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range []error{ErrRateLimitExceeded, ErrInvalidReceiver, ErrRejected} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return true
}
