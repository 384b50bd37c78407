package fbsmslib

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/IMQS/log"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// Server exposes one Client over HTTP. Requests are served concurrently but
// every call into the Client holds mu.
type Server struct {
	Config Configuration
	Log    *log.Logger
	Client *Client

	mu sync.Mutex
}

type SMSRequest struct {
	MSISDNS []string `json:"msisdns"`
	Message string   `json:"message"`
}

type sendResult struct {
	MSISDN string `json:"msisdn"`
	Sent   bool   `json:"sent"`
	Error  string `json:"error,omitempty"`
}

type sendSMSResponse struct {
	RefNumber      string       `json:"refNumber"`
	ValidNumbers   int          `json:"validNumbers"`
	InvalidNumbers int          `json:"invalidNumbers"`
	MessagesSent   int          `json:"messagesSent"`
	Results        []sendResult `json:"results"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text"`
	Date      string `json:"date"`
	Direction string `json:"direction"`
}

// Initialize opens the log file and builds the Client from the config.
func (s *Server) Initialize() error {
	if s.Config.Logfile == "" {
		s.Config.Logfile = "stdout"
	}
	s.Log = log.New(s.Config.Logfile, false)
	s.Log.Level = 0

	client, err := s.Config.NewClient(s.Log)
	if err != nil {
		s.Log.Errorf("Error creating SMS client: %v", err)
		return err
	}
	s.Client = client
	return nil
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/ping", s.handlePing)
	router.GET("/sms", s.handleListSMS)
	router.GET("/sms/incoming", s.handleIncomingSMS)
	router.POST("/sendsms", s.handleSendSMS)
	return router
}

// StartServer listens on the configured port until the listener fails.
func (s *Server) StartServer() error {
	address := fmt.Sprintf(":%v", s.Config.HTTPPort)
	s.Log.Infof("SMS relay is listening on %v", address)
	err := http.ListenAndServe(address, s.Handler())
	if err != nil {
		s.Log.Errorf("ListenAndServe:%v\n", err)
		return err
	}
	return nil
}

// handleSendSMS expects a JSON SMSRequest. Invalid numbers are dropped and
// counted; every valid number gets its own result.
func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userAuth, identity := userHasPermission(s, r)
	if !userAuth {
		http.Error(w, "User unauthorized", http.StatusUnauthorized)
		return
	}

	var postData SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&postData); err != nil {
		http.Error(w, "Invalid message or msisdn json data", http.StatusNotAcceptable)
		return
	}
	if len(postData.Message) == 0 || len(postData.MSISDNS) == 0 {
		http.Error(w, "Invalid message or msisdn data", http.StatusNotAcceptable)
		return
	}

	valid, invalid := cleanMSISDNs(postData.MSISDNS, s.Client.region)
	ref := uuid.New().String()
	s.Log.Infof("Request %v from %v: send to %v recipients (%v invalid)", ref, identity, len(valid), len(invalid))

	s.mu.Lock()
	results := s.Client.SendSMSMultiple(valid, postData.Message)
	s.mu.Unlock()

	sendR := sendSMSResponse{
		RefNumber:      ref,
		ValidNumbers:   len(valid),
		InvalidNumbers: len(invalid),
		Results:        []sendResult{},
	}
	for _, res := range results {
		sr := sendResult{MSISDN: res.Receiver, Sent: res.OK()}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		} else {
			sendR.MessagesSent++
		}
		sendR.Results = append(sendR.Results, sr)
	}
	writeJSON(w, sendR)
}

func (s *Server) handleListSMS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.serveMessages(w, r, s.Client.GetSMS)
}

func (s *Server) handleIncomingSMS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.serveMessages(w, r, s.Client.GetSMSIncoming)
}

func (s *Server) serveMessages(w http.ResponseWriter, r *http.Request, fetch func() ([]Message, error)) {
	if userAuth, _ := userHasPermission(s, r); !userAuth {
		http.Error(w, "User unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	msgs, err := fetch()
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Text:      m.Text,
			Date:      m.Date,
			Direction: m.Direction.String(),
		})
	}
	writeJSON(w, out)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "{\"Timestamp\": %v}", time.Now().Unix())
}

// statusFor maps client errors onto the status the relay answers with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidReceiver), errors.Is(err, ErrRejected):
		return http.StatusNotAcceptable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
