package fbsmslib

import (
	"fmt"
	"strings"

	"github.com/netz-ac/fbsmslib/fritzbox"
)

// Router values of the send dialog.
const (
	applyOK         = "ok"
	applyValError   = "valerror"
	secondTwoFactor = "twofactor"
	statusReceived  = "received"
)

type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Message is an SMS as stored on the router. For incoming messages Sender
// is set, for outgoing ones Recipient.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Text      string
	Date      string
	Direction Direction
}

// Result is the outcome of one recipient of SendSMSMultiple.
type Result struct {
	Receiver string
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// SendSMS sends message to receiver. The rate limiter is consulted before
// any request is made; a stale session is replaced and the send retried
// once.
func (c *Client) SendSMS(receiver, message string) error {
	receiver, err := validateReceiver(receiver, c.region)
	if err != nil {
		return err
	}
	if message == "" {
		return newError(ErrRejected, "message is empty", nil)
	}
	if err := c.limiter.Acquire(); err != nil {
		c.log.Infof("Not sending SMS to %v: %v", receiver, err)
		return err
	}

	c.log.Infof("Sending SMS to %v (%v characters)", receiver, len([]rune(message)))
	err = c.do(func(sid string) error {
		return c.sendMessage(sid, receiver, message)
	})
	if err != nil {
		c.log.Errorf("Sending SMS to %v failed: %v", receiver, err)
	}
	return err
}

func (c *Client) sendMessage(sid, receiver, text string) error {
	resp, err := c.rest.SendMessage(sid, c.lang, receiver, text)
	if err != nil {
		return err
	}
	switch resp.Apply.String() {
	case applyOK:
	case applyValError:
		return newError(ErrRejected, fmt.Sprintf("validation error: %v", resp.ValError), nil)
	default:
		return newError(ErrRejected, fmt.Sprintf("failed to initiate SMS sending, apply=%q", resp.Apply), nil)
	}
	if resp.Done() {
		return nil
	}

	uid := resp.NewUID.String()
	if uid == "" {
		return newError(ErrCommunication, "send dialog returned neither redirect nor new_uid", nil)
	}
	resp, err = c.rest.ConfirmMessage(sid, c.lang, receiver, uid, text, false)
	if err != nil {
		return err
	}

	switch resp.SecondApply.String() {
	case applyOK:
		return nil
	case secondTwoFactor:
	default:
		return newError(ErrRejected, fmt.Sprintf("unexpected second_apply %q", resp.SecondApply), nil)
	}

	if err := c.auth.ConfirmSecondFactor(sid, resp.TwoFactor.String()); err != nil {
		return err
	}
	resp, err = c.rest.ConfirmMessage(sid, c.lang, receiver, uid, text, true)
	if err != nil {
		return err
	}
	if resp.SecondApply.String() == secondTwoFactor {
		return newError(ErrAuthentication, "router still asks for a second factor", nil)
	}
	return nil
}

// SendSMSMultiple sends message to every receiver in order, pausing between
// sends, and returns one Result per receiver. Rate limit and per-receiver
// errors do not stop the batch. Any other error does: the receivers after
// it are reported with ErrBatchAborted wrapping that error.
func (c *Client) SendSMSMultiple(receivers []string, message string) []Result {
	results := make([]Result, 0, len(receivers))
	var fatal error
	for i, r := range receivers {
		if fatal != nil {
			results = append(results, Result{Receiver: r, Err: newError(ErrBatchAborted, "", fatal)})
			continue
		}
		if i > 0 && c.sendDelay > 0 {
			c.sleep(c.sendDelay)
		}
		err := c.SendSMS(r, message)
		results = append(results, Result{Receiver: r, Err: err})
		if isFatal(err) {
			c.log.Errorf("Aborting batch after %v of %v receivers", i+1, len(receivers))
			fatal = err
		}
	}
	return results
}

// GetSMS returns every message stored on the router.
func (c *Client) GetSMS() ([]Message, error) {
	var entries []fritzbox.SMSEntry
	err := c.do(func(sid string) error {
		var err error
		entries, err = c.rest.ListMessages(sid, c.lang)
		return err
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, toMessage(e))
	}
	c.log.Debugf("Fetched %v messages", len(msgs))
	return msgs, nil
}

// GetSMSIncoming returns the received messages stored on the router.
func (c *Client) GetSMSIncoming() ([]Message, error) {
	msgs, err := c.GetSMS()
	if err != nil {
		return nil, err
	}
	incoming := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Direction == Incoming {
			incoming = append(incoming, m)
		}
	}
	return incoming, nil
}

func toMessage(e fritzbox.SMSEntry) Message {
	m := Message{
		ID:   e.ID.String(),
		Text: e.Message,
		Date: e.Date,
	}
	if strings.EqualFold(e.StatusName, statusReceived) {
		m.Direction = Incoming
		m.Sender = e.Number
	} else {
		m.Direction = Outgoing
		m.Recipient = e.Number
	}
	return m
}
