package fritzbox

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginState(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login_sid.lua", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("version"))
		w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
<SessionInfo><SID>0000000000000000</SID><Challenge>2$10000$5A1711$2000$5A1722</Challenge><BlockTime>3</BlockTime>
<Rights></Rights><Users><User last="1">fritz1234</User></Users></SessionInfo>`))
	}))
	defer box.Close()

	info, err := Rest(box.URL+"/", nil).LoginState()
	require.NoError(t, err)
	assert.Equal(t, "2$10000$5A1711$2000$5A1722", info.Challenge)
	assert.Equal(t, 3, info.BlockTime)
	assert.False(t, info.LoggedIn())
	assert.Equal(t, []string{"fritz1234"}, info.Users)
}

func TestLoginPostsForm(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		r.ParseForm()
		assert.Equal(t, "fritz1234", r.PostForm.Get("username"))
		assert.Equal(t, "5A1722$abc", r.PostForm.Get("response"))
		w.Write([]byte(`<SessionInfo><SID>9f3e8c2a1b0d4e5f</SID><Challenge>x</Challenge><BlockTime>0</BlockTime>
<Rights><Name>Dial</Name><Access>2</Access><Name>BoxAdmin</Name><Access>2</Access></Rights></SessionInfo>`))
	}))
	defer box.Close()

	info, err := Rest(box.URL, nil).Login("fritz1234", "5A1722$abc")
	require.NoError(t, err)
	assert.True(t, info.LoggedIn())
	assert.Equal(t, "9f3e8c2a1b0d4e5f", info.SID)
	assert.Equal(t, []string{"Dial", "BoxAdmin"}, info.Rights)
}

func TestLoginStateMalformed(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not a session</html>`))
	}))
	defer box.Close()

	_, err := Rest(box.URL, nil).LoginState()
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestDataUnauthorized(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		}},
		{"redirect", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login.lua", http.StatusSeeOther)
		}},
		{"zero sid", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"sid":"0000000000000000","data":{}}`))
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			box := httptest.NewServer(c.handler)
			defer box.Close()

			_, err := Rest(box.URL, nil).ListMessages("1234567890abcdef", "de")
			assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
		})
	}
}

func TestDataStatusError(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer box.Close()

	err := Rest(box.URL, nil).Data("1234567890abcdef", url.Values{}, &struct{}{})
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestSendMessage(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f := r.PostForm
		assert.Equal(t, "1", f.Get("xhr"))
		assert.Equal(t, "1234567890abcdef", f.Get("sid"))
		assert.Equal(t, "smsSendMsg", f.Get("page"))
		assert.Equal(t, "true", f.Get("apply"))
		assert.Equal(t, "+491701234567", f.Get("recipient"))
		assert.Equal(t, "hello", f.Get("newMessage"))
		w.Write([]byte(`{"sid":"1234567890abcdef","data":{"apply":"ok","new_uid":42}}`))
	}))
	defer box.Close()

	resp, err := Rest(box.URL, nil).SendMessage("1234567890abcdef", "de", "+491701234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Apply.String())
	assert.Equal(t, "42", resp.NewUID.String())
	assert.False(t, resp.Done())
}

func TestConfirmMessage(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f := r.PostForm
		assert.Equal(t, "+491701234567", f.Get("receipient"))
		assert.Equal(t, "uid1", f.Get("new_uid"))
		_, confirmed := f["confirmed"]
		assert.True(t, confirmed)
		w.Write([]byte(`{"sid":"1234567890abcdef","data":{"second_apply":"ok"}}`))
	}))
	defer box.Close()

	resp, err := Rest(box.URL, nil).ConfirmMessage("1234567890abcdef", "de", "+491701234567", "uid1", "hello", true)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.SecondApply.String())
}

func TestListMessagesMissingList(t *testing.T) {
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sid":"1234567890abcdef","data":{"somethingElse":[]}}`))
	}))
	defer box.Close()

	_, err := Rest(box.URL, nil).ListMessages("1234567890abcdef", "de")
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}
