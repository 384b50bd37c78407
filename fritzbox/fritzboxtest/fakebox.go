// Package fritzboxtest provides an in-process router that speaks the login,
// data.lua and twofactor.lua dialogs well enough to drive the SMS client in
// tests.
package fritzboxtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/pbkdf2"

	"github.com/netz-ac/fbsmslib/fritzbox"
)

// DefaultChallenge is the worked example from the router vendor's login
// documentation, with the password "1example!".
const DefaultChallenge = "2$10000$5A1711$2000$5A1722"

// StaleMode selects how the box tells a client that its sid is no longer
// valid.
type StaleMode int

const (
	StaleForbidden StaleMode = iota
	StaleRedirect
	StaleZeroSID
)

// Message is an SMS stored on the box.
type Message struct {
	ID       int
	Number   string
	Text     string
	Date     string
	Received bool
}

// Sent records an SMS the box accepted.
type Sent struct {
	Recipient string
	Text      string
}

type Box struct {
	Server *httptest.Server

	Username   string
	Password   string
	TOTPSecret string

	// Challenge is served verbatim; set a "$"-less value to mimic old
	// MD5-only firmware.
	Challenge string
	BlockTime int

	// TwoFactor is the method list returned when a send needs confirmation.
	// Empty disables the second factor.
	TwoFactor string
	Stale     StaleMode
	// Locked makes the box refuse every sid on data.lua, like an account
	// that may log in but lacks the SMS right.
	Locked bool
	// Reject maps recipients to a validation error text.
	Reject   map[string]string
	Messages []Message
	// ListBody, when set, replaces the smsList reply.
	ListBody string

	mu        sync.Mutex
	sids      map[string]bool
	pending   map[string]*pendingSMS
	nextSID   int
	nextUID   int
	logins    int
	failures  int
	sent      []Sent
	dataCalls int
}

type pendingSMS struct {
	recipient string
	text      string
	confirmed bool
}

// New starts a box that accepts username/password and, if secret is not
// empty, asks for a TOTP code before sending.
func New(username, password, secret string) *Box {
	b := &Box{
		Username:   username,
		Password:   password,
		TOTPSecret: secret,
		Challenge:  DefaultChallenge,
		Reject:     map[string]string{},
		sids:       map[string]bool{},
		pending:    map[string]*pendingSMS{},
	}
	if secret != "" {
		b.TwoFactor = "button,googleauth"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login_sid.lua", b.handleLogin)
	mux.HandleFunc("/data.lua", b.handleData)
	mux.HandleFunc("/twofactor.lua", b.handleTwoFactor)
	mux.HandleFunc("/login.lua", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	b.Server = httptest.NewServer(mux)
	return b
}

func (b *Box) URL() string {
	return b.Server.URL
}

func (b *Box) Close() {
	b.Server.Close()
}

// ExpireSessions forgets every issued sid, as the router does after its
// idle timeout.
func (b *Box) ExpireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sids = map[string]bool{}
}

// Logins returns the number of successful logins.
func (b *Box) Logins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logins
}

// FailedLogins returns the number of rejected login responses.
func (b *Box) FailedLogins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Sent returns the messages the box accepted.
func (b *Box) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// DataCalls returns the number of data.lua requests seen.
func (b *Box) DataCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataCalls
}

// ExpectedResponse computes the login response the box accepts.
func (b *Box) ExpectedResponse() string {
	parts := strings.Split(b.Challenge, "$")
	if len(parts) != 5 {
		return ""
	}
	iter1, _ := strconv.Atoi(parts[1])
	salt1, _ := hex.DecodeString(parts[2])
	iter2, _ := strconv.Atoi(parts[3])
	salt2, _ := hex.DecodeString(parts[4])
	hash1 := pbkdf2.Key([]byte(b.Password), salt1, iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(hash2)
}

func (b *Box) handleLogin(w http.ResponseWriter, r *http.Request) {
	sid := fritzbox.ZeroSID
	if r.Method == http.MethodPost {
		r.ParseForm()
		b.mu.Lock()
		if r.PostForm.Get("username") == b.Username && r.PostForm.Get("response") == b.ExpectedResponse() {
			b.nextSID++
			sid = fmt.Sprintf("%016x", b.nextSID)
			b.sids[sid] = true
			b.logins++
		} else {
			b.failures++
		}
		b.mu.Unlock()
	}

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><SessionInfo><SID>%v</SID><Challenge>%v</Challenge><BlockTime>%d</BlockTime><Rights><Name>BoxAdmin</Name><Access>2</Access></Rights><Users><User last="1">%v</User></Users></SessionInfo>`,
		sid, b.Challenge, b.BlockTime, b.Username)
}

// authorized checks the sid of r and writes the stale reply if it is
// unknown.
func (b *Box) authorized(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	ok := b.sids[r.PostForm.Get("sid")] && !b.Locked
	b.mu.Unlock()
	if ok {
		return true
	}
	switch b.Stale {
	case StaleRedirect:
		http.Redirect(w, r, "/login.lua", http.StatusSeeOther)
	case StaleZeroSID:
		writeData(w, fritzbox.ZeroSID, map[string]interface{}{})
	default:
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
	return false
}

func (b *Box) handleData(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	b.mu.Lock()
	b.dataCalls++
	b.mu.Unlock()
	if !b.authorized(w, r) {
		return
	}
	sid := r.PostForm.Get("sid")

	switch r.PostForm.Get("page") {
	case "smsList":
		if b.ListBody != "" {
			w.Write([]byte(b.ListBody))
			return
		}
		writeData(w, sid, map[string]interface{}{"smsListData": map[string]interface{}{"messages": b.listEntries()}})
	case "smsSendMsg":
		b.handleSend(w, r, sid)
	default:
		http.Error(w, "unknown page", http.StatusNotFound)
	}
}

func (b *Box) listEntries() []map[string]interface{} {
	entries := []map[string]interface{}{}
	for _, m := range b.Messages {
		status := "sent"
		if m.Received {
			status = "received"
		}
		entries = append(entries, map[string]interface{}{
			"id":          m.ID,
			"number":      m.Number,
			"message":     m.Text,
			"date":        m.Date,
			"status_name": status,
		})
	}
	return entries
}

func (b *Box) handleSend(w http.ResponseWriter, r *http.Request, sid string) {
	f := r.PostForm
	b.mu.Lock()
	defer b.mu.Unlock()

	if f.Get("apply") == "true" {
		recipient := f.Get("recipient")
		if reason, ok := b.Reject[recipient]; ok {
			writeData(w, sid, map[string]interface{}{"apply": "valerror", "valerror": reason})
			return
		}
		if b.TwoFactor == "" {
			b.sent = append(b.sent, Sent{Recipient: recipient, Text: f.Get("newMessage")})
			writeData(w, sid, map[string]interface{}{"apply": "ok", "redirect": "/sms"})
			return
		}
		b.nextUID++
		uid := fmt.Sprintf("uid%d", b.nextUID)
		b.pending[uid] = &pendingSMS{recipient: recipient, text: f.Get("newMessage")}
		writeData(w, sid, map[string]interface{}{"apply": "ok", "new_uid": uid})
		return
	}

	p, ok := b.pending[f.Get("new_uid")]
	if !ok {
		writeData(w, sid, map[string]interface{}{"second_apply": "error"})
		return
	}
	_, confirmed := f["confirmed"]
	if !confirmed || !p.confirmed {
		writeData(w, sid, map[string]interface{}{"second_apply": "twofactor", "twofactor": b.TwoFactor})
		return
	}
	delete(b.pending, f.Get("new_uid"))
	b.sent = append(b.sent, Sent{Recipient: p.recipient, Text: p.text})
	writeData(w, sid, map[string]interface{}{"second_apply": "ok"})
}

func (b *Box) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	if !b.authorized(w, r) {
		return
	}
	f := r.PostForm
	if _, ok := f["tfa_googleauth_info"]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"err":0,"googleauth":{"isConfigured":true}}`))
		return
	}

	code := f.Get("tfa_googleauth")
	if code == "" || !totp.Validate(code, b.TOTPSecret) {
		http.Error(w, `{"err":1}`, http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	for _, p := range b.pending {
		p.confirmed = true
	}
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"err":0}`))
}

func writeData(w http.ResponseWriter, sid string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"sid": sid, "data": data})
}
