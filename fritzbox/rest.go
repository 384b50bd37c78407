package fritzbox

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type RestClient struct {
	client  *http.Client
	baseURL string
}

// Rest returns a client for the router at baseURL. Redirects are never
// followed because the router answers a stale sid with a redirect to its
// login page.
func Rest(baseURL string, client *http.Client) *RestClient {
	var c http.Client
	if client != nil {
		c = *client
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &RestClient{
		client:  &c,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *RestClient) applyHeaders(req *http.Request) *http.Request {
	req.Header.Add("User-Agent", userAgent)
	if req.Method == http.MethodPost {
		req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

// LoginState fetches the current login challenge.
func (c *RestClient) LoginState() (*SessionInfo, error) {
	req, err := http.NewRequest(http.MethodGet, Concat(c.baseURL, LoginRoute), nil)
	if err != nil {
		return nil, err
	}
	return c.sessionInfo(req)
}

// Login submits the challenge response and returns the resulting session
// document. A rejected login is not an error here; the SID is ZeroSID.
func (c *RestClient) Login(username, response string) (*SessionInfo, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("response", response)
	req, err := http.NewRequest(http.MethodPost, Concat(c.baseURL, LoginRoute), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	return c.sessionInfo(req)
}

func (c *RestClient) sessionInfo(req *http.Request) (*SessionInfo, error) {
	resp, err := c.client.Do(c.applyHeaders(req))
	if err != nil {
		return nil, fmt.Errorf("fritzbox: login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Route: LoginRoute, Code: resp.StatusCode, Body: GetContent(resp)}
	}

	result := &SessionInfo{}
	if err := xml.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrMalformed, LoginRoute, err)
	}
	return result, nil
}

// SendMessage opens the send dialog for recipient with the message text.
func (c *RestClient) SendMessage(sid, lang, recipient, text string) (*SendResponse, error) {
	form := url.Values{}
	form.Set("lang", lang)
	form.Set("page", "smsSendMsg")
	form.Set("recipient", recipient)
	form.Set("apply", "true")
	form.Set("newMessage", text)

	result := &SendResponse{}
	err := c.Data(sid, form, result)
	return result, err
}

// ConfirmMessage runs the second step of the send dialog for the message
// identified by uid. confirmed is set once the second factor was accepted.
// The misspelled receipient field is what the firmware reads in this step.
func (c *RestClient) ConfirmMessage(sid, lang, recipient, uid, text string, confirmed bool) (*SendResponse, error) {
	form := url.Values{}
	form.Set("lang", lang)
	form.Set("page", "smsSendMsg")
	form.Set("receipient", recipient)
	form.Set("second_apply", "")
	form.Set("new_uid", uid)
	form.Set("newMessage", text)
	if confirmed {
		form.Set("confirmed", "")
		form.Set("twofactor", "")
	}

	result := &SendResponse{}
	err := c.Data(sid, form, result)
	return result, err
}

// ListMessages returns every SMS stored on the router.
func (c *RestClient) ListMessages(sid, lang string) ([]SMSEntry, error) {
	form := url.Values{}
	form.Set("lang", lang)
	form.Set("page", "smsList")
	form.Set("xhrId", "all")

	result := &smsListResponse{}
	if err := c.Data(sid, form, result); err != nil {
		return nil, err
	}
	if result.SMSListData == nil || result.SMSListData.Messages == nil {
		return nil, fmt.Errorf("%w: smsList reply has no smsListData.messages", ErrMalformed)
	}
	return result.SMSListData.Messages, nil
}

// Data posts form to data.lua and decodes the data block of the reply into
// out.
func (c *RestClient) Data(sid string, form url.Values, out interface{}) error {
	form.Set("xhr", "1")
	form.Set("sid", sid)
	resp, err := c.post(DataRoute, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env := dataEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v: %v", ErrMalformed, DataRoute, err)
	}
	if env.SID == ZeroSID {
		return ErrUnauthorized
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %v reply has no data block", ErrMalformed, DataRoute)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v: %v", ErrMalformed, DataRoute, err)
	}
	return nil
}

// TwoFactor posts form to twofactor.lua. The reply body carries nothing the
// caller needs, only its status is checked.
func (c *RestClient) TwoFactor(sid string, form url.Values) error {
	form.Set("xhr", "1")
	form.Set("sid", sid)
	form.Set("no_sidrenew", "")
	resp, err := c.post(TwoFactorRoute, form)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *RestClient) post(route string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, Concat(c.baseURL, route), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(c.applyHeaders(req))
	if err != nil {
		return nil, fmt.Errorf("fritzbox: %v request failed: %w", route, err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 300 && resp.StatusCode < 400:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Route: route, Code: resp.StatusCode, Body: GetContent(resp)}
	}
	return resp, nil
}
