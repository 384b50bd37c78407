package fbsmslib

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netz-ac/fbsmslib/fritzbox/fritzboxtest"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Credentials{URL: "  ", Username: testUser})
	assert.Error(t, err)
}

func TestNewRejectsNegativeCapacity(t *testing.T) {
	_, err := New(Credentials{URL: "http://fritz.box"}, WithRateLimit(RateLimit{Capacity: -1, Window: time.Hour}))
	assert.Error(t, err)
}

func TestLoginIsLazy(t *testing.T) {
	box := newTestBox(t, "")
	c := newTestClient(t, box, newFakeClock())
	assert.Equal(t, 0, box.Logins())

	require.NoError(t, c.Login())
	require.NoError(t, c.Login())
	assert.Equal(t, 1, box.Logins())
}

func TestSessionReuse(t *testing.T) {
	box := newTestBox(t, "")
	c := newTestClient(t, box, newFakeClock())

	_, err := c.GetSMS()
	require.NoError(t, err)
	_, err = c.GetSMS()
	require.NoError(t, err)
	require.NoError(t, c.SendSMS(testNumber, "hello"))
	assert.Equal(t, 1, box.Logins())
}

func TestSessionRecovery(t *testing.T) {
	modes := map[string]fritzboxtest.StaleMode{
		"forbidden": fritzboxtest.StaleForbidden,
		"redirect":  fritzboxtest.StaleRedirect,
		"zero sid":  fritzboxtest.StaleZeroSID,
	}
	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			box := newTestBox(t, "")
			box.Stale = mode
			c := newTestClient(t, box, newFakeClock())

			require.NoError(t, c.Login())
			box.ExpireSessions()

			require.NoError(t, c.SendSMS(testNumber, "hello"))
			assert.Equal(t, 2, box.Logins())
			assert.Equal(t, []fritzboxtest.Sent{{Recipient: testNumber, Text: "hello"}}, box.Sent())
		})
	}
}

func TestSessionRecoveryFails(t *testing.T) {
	box := newTestBox(t, "")
	box.Locked = true
	c := newTestClient(t, box, newFakeClock())

	_, err := c.GetSMS()
	assert.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	assert.Equal(t, 2, box.Logins())
	assert.Equal(t, 2, box.DataCalls())
}

func TestSessionIdleExpiry(t *testing.T) {
	box := newTestBox(t, "")
	clock := newFakeClock()
	c := newTestClient(t, box, clock)

	_, err := c.GetSMS()
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = c.GetSMS()
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = c.GetSMS()
	require.NoError(t, err)
	assert.Equal(t, 1, box.Logins())

	clock.Advance(DefaultSessionIdle + time.Second)
	_, err = c.GetSMS()
	require.NoError(t, err)
	assert.Equal(t, 2, box.Logins())
}

func TestWrongPasswordIsNotRetried(t *testing.T) {
	box := newTestBox(t, "")
	box.Password = "something else"
	c := newTestClient(t, box, newFakeClock())

	err := c.Login()
	assert.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	assert.Equal(t, 1, box.FailedLogins())
}

func TestRouterUnreachable(t *testing.T) {
	box := newTestBox(t, "")
	c := newTestClient(t, box, newFakeClock())
	box.Close()

	_, err := c.GetSMS()
	assert.True(t, errors.Is(err, ErrCommunication), "got %v", err)
}
