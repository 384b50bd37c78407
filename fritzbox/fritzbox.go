package fritzbox

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
)

const (
	LoginRoute     = "/login_sid.lua?version=2"
	DataRoute      = "/data.lua"
	TwoFactorRoute = "/twofactor.lua"
	userAgent      = "GOFritzSMS"

	// ZeroSID is what the router reports in place of a session id when the
	// caller is not logged in.
	ZeroSID = "0000000000000000"
)

var (
	// ErrUnauthorized is returned when the router no longer accepts the sid:
	// a 403, a redirect to the login page or a zero sid in the reply.
	ErrUnauthorized = errors.New("fritzbox: session not authenticated")
	// ErrMalformed is returned when a reply cannot be decoded into the
	// structure the firmware is expected to send.
	ErrMalformed = errors.New("fritzbox: malformed response")
)

// StatusError reports an unexpected HTTP status from a router endpoint.
type StatusError struct {
	Route string
	Code  int
	Body  string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fritzbox: %v returned status %d", e.Route, e.Code)
	}
	return fmt.Sprintf("fritzbox: %v returned status %d: %v", e.Route, e.Code, e.Body)
}

// SessionInfo is the document served by login_sid.lua.
type SessionInfo struct {
	XMLName   xml.Name `xml:"SessionInfo"`
	SID       string   `xml:"SID"`
	Challenge string   `xml:"Challenge"`
	BlockTime int      `xml:"BlockTime"`
	Rights    []string `xml:"Rights>Name"`
	Users     []string `xml:"Users>User"`
}

// LoggedIn reports whether the document carries a usable sid.
func (s *SessionInfo) LoggedIn() bool {
	return s.SID != "" && s.SID != ZeroSID
}

// Value holds a data.lua field that firmware versions encode either as a
// JSON string or as a bare JSON value (number, object).
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Value(s)
		return nil
	}
	*v = Value(bytes.TrimSpace(b))
	return nil
}

func (v Value) String() string {
	return string(v)
}

// dataEnvelope wraps every data.lua reply.
type dataEnvelope struct {
	SID  string          `json:"sid"`
	Data json.RawMessage `json:"data"`
}

// SendResponse is the data block of a page=smsSendMsg reply. Which fields
// are set depends on the step of the send dialog.
type SendResponse struct {
	Apply       Value  `json:"apply"`
	ValError    Value  `json:"valerror"`
	Redirect    *Value `json:"redirect"`
	NewUID      Value  `json:"new_uid"`
	SecondApply Value  `json:"second_apply"`
	TwoFactor   Value  `json:"twofactor"`
}

// Done reports whether the router finished the send without another step.
func (r *SendResponse) Done() bool {
	return r.Redirect != nil
}

// SMSEntry is a single message in the page=smsList reply.
type SMSEntry struct {
	ID         Value  `json:"id"`
	Number     string `json:"number"`
	Message    string `json:"message"`
	Date       string `json:"date"`
	StatusName string `json:"status_name"`
}

type smsListResponse struct {
	SMSListData *struct {
		Messages []SMSEntry `json:"messages"`
	} `json:"smsListData"`
}
