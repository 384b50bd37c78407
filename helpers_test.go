package fbsmslib

import (
	"testing"
	"time"

	"github.com/IMQS/log"
	"github.com/stretchr/testify/require"

	"github.com/netz-ac/fbsmslib/fritzbox/fritzboxtest"
)

const (
	testUser     = "fritz1234"
	testPassword = "1example!"
	testSecret   = "JBSWY3DPEHPK3PXP"
	testNumber   = "+491701234567"
	testNumber2  = "+491711234567"
)

// fakeClock stands in for time.Now and time.Sleep. Sleeping advances the
// clock.
type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testLogger() *log.Logger {
	l := log.New("stdout", false)
	l.Level = 0
	return l
}

func newTestBox(t *testing.T, secret string) *fritzboxtest.Box {
	box := fritzboxtest.New(testUser, testPassword, secret)
	t.Cleanup(box.Close)
	return box
}

func newTestClient(t *testing.T, box *fritzboxtest.Box, clock *fakeClock, opts ...Option) *Client {
	creds := Credentials{
		URL:        box.URL(),
		Username:   testUser,
		Password:   testPassword,
		TOTPSecret: box.TOTPSecret,
	}
	opts = append([]Option{WithLogger(testLogger()), withClock(clock.Now, clock.Sleep)}, opts...)
	c, err := New(creds, opts...)
	require.NoError(t, err)
	return c
}
