package fbsmslib

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/IMQS/log"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/pbkdf2"

	"github.com/netz-ac/fbsmslib/fritzbox"
)

// pbkdf2Prefix marks a version 2 challenge. Anything else is the MD5 scheme
// of firmware older than 7.24.
const pbkdf2Prefix = "2$"

const totpMethod = "googleauth"

// Credentials identify one router account.
type Credentials struct {
	URL        string
	Username   string
	Password   string
	TOTPSecret string
}

// AuthState is the step the login dialog is in.
type AuthState int

const (
	NoSession AuthState = iota
	ChallengeIssued
	AwaitingSecondFactor
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case NoSession:
		return "no session"
	case ChallengeIssued:
		return "challenge issued"
	case AwaitingSecondFactor:
		return "awaiting second factor"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Challenge is a parsed "2$<iter1>$<salt1>$<iter2>$<salt2>" login challenge.
type Challenge struct {
	Raw   string
	Iter1 int
	Salt1 []byte
	Iter2 int
	Salt2 []byte

	salt2Hex string
}

// ParseChallenge splits a PBKDF2 challenge. Challenges of the older scheme
// fail with ErrUnsupportedAuth.
func ParseChallenge(s string) (*Challenge, error) {
	if !strings.HasPrefix(s, pbkdf2Prefix) {
		return nil, newError(ErrUnsupportedAuth, "update the router firmware to 7.24 or later", nil)
	}
	parts := strings.Split(s, "$")
	if len(parts) != 5 {
		return nil, newError(ErrAuthentication, fmt.Sprintf("malformed challenge %q", s), nil)
	}

	c := &Challenge{Raw: s}
	var err error
	if c.Iter1, err = strconv.Atoi(parts[1]); err != nil || c.Iter1 <= 0 {
		return nil, newError(ErrAuthentication, "malformed challenge iteration count", err)
	}
	if c.Salt1, err = hex.DecodeString(parts[2]); err != nil {
		return nil, newError(ErrAuthentication, "malformed challenge salt", err)
	}
	if c.Iter2, err = strconv.Atoi(parts[3]); err != nil || c.Iter2 <= 0 {
		return nil, newError(ErrAuthentication, "malformed challenge iteration count", err)
	}
	if c.Salt2, err = hex.DecodeString(parts[4]); err != nil {
		return nil, newError(ErrAuthentication, "malformed challenge salt", err)
	}
	c.salt2Hex = parts[4]
	return c, nil
}

// Response hashes the password twice, first with the static salt and then
// with the per-login salt, and returns "<salt2>$<hex hash>" with salt2
// exactly as the router sent it.
func (c *Challenge) Response(password string) string {
	hash1 := pbkdf2.Key([]byte(password), c.Salt1, c.Iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, c.Salt2, c.Iter2, sha256.Size, sha256.New)
	return c.salt2Hex + "$" + hex.EncodeToString(hash2)
}

// Authenticator runs the login dialog against one router.
type Authenticator struct {
	rest  *fritzbox.RestClient
	creds Credentials
	log   *log.Logger
	state AuthState
	now   func() time.Time
	sleep func(time.Duration)
}

func NewAuthenticator(rest *fritzbox.RestClient, creds Credentials, logger *log.Logger) *Authenticator {
	return &Authenticator{
		rest:  rest,
		creds: creds,
		log:   logger,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

func (a *Authenticator) State() AuthState {
	return a.state
}

// Login solves a fresh challenge and returns the new session. It never
// retries.
func (a *Authenticator) Login() (*Session, error) {
	a.state = NoSession
	info, err := a.rest.LoginState()
	if err != nil {
		return nil, newError(ErrCommunication, "failed to get challenge", err)
	}
	a.state = ChallengeIssued

	challenge, err := ParseChallenge(info.Challenge)
	if err != nil {
		a.state = NoSession
		return nil, err
	}
	response := challenge.Response(a.creds.Password)

	if info.BlockTime > 0 {
		a.log.Infof("Router blocks logins for %v seconds, waiting", info.BlockTime)
		a.sleep(time.Duration(info.BlockTime) * time.Second)
	}

	result, err := a.rest.Login(a.creds.Username, response)
	if err != nil {
		a.state = NoSession
		return nil, newError(ErrCommunication, "failed to login", err)
	}
	if !result.LoggedIn() {
		a.state = NoSession
		return nil, newError(ErrAuthentication, "wrong username or password", nil)
	}

	a.state = Authenticated
	a.log.Infof("Logged in to %v as %v", a.creds.URL, a.creds.Username)
	a.log.Debugf("Granted rights: %v", strings.Join(result.Rights, ","))
	return &Session{ID: result.SID, ObtainedAt: a.now()}, nil
}

// ConfirmSecondFactor answers the router's second factor request for the
// session sid. methods is the router's comma separated list of accepted
// methods; only TOTP ("googleauth") is supported.
func (a *Authenticator) ConfirmSecondFactor(sid, methods string) error {
	if !strings.Contains(methods, totpMethod) {
		a.state = NoSession
		return newError(ErrUnsupportedTwoFactor, fmt.Sprintf("router offers %q", methods), nil)
	}
	if a.creds.TOTPSecret == "" {
		a.state = NoSession
		return newError(ErrAuthentication, "router requires a TOTP code but no secret is configured", nil)
	}
	a.state = AwaitingSecondFactor

	code, err := totp.GenerateCode(a.creds.TOTPSecret, a.now())
	if err != nil {
		a.state = NoSession
		return newError(ErrAuthentication, "invalid TOTP secret", err)
	}

	if err := a.rest.TwoFactor(sid, url.Values{"tfa_googleauth_info": {""}}); err != nil {
		a.state = NoSession
		return secondFactorError(err)
	}
	if err := a.rest.TwoFactor(sid, url.Values{"tfa_googleauth": {code}}); err != nil {
		a.state = NoSession
		return secondFactorError(err)
	}

	a.log.Debugf("Second factor accepted")
	a.state = Authenticated
	return nil
}

func secondFactorError(err error) error {
	var se *fritzbox.StatusError
	if errors.As(err, &se) {
		return newError(ErrAuthentication, "second factor rejected", err)
	}
	return newError(ErrCommunication, "second factor request failed", err)
}
