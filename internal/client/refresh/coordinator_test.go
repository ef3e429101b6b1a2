package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

type fakeAPI struct {
	refreshCalls int32
	meCalls      int32

	token      string
	refreshErr error
	release    chan struct{}

	profile *client.Profile
	meErrs  []error

	hasCookie bool
}

func (f *fakeAPI) Refresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.release != nil {
		<-f.release
	}
	return f.token, f.refreshErr
}

func (f *fakeAPI) Me(ctx context.Context) (*client.Profile, error) {
	n := atomic.AddInt32(&f.meCalls, 1)
	if int(n) <= len(f.meErrs) && f.meErrs[n-1] != nil {
		return nil, f.meErrs[n-1]
	}
	return f.profile, nil
}

func (f *fakeAPI) HasRefreshCredential() bool { return f.hasCookie }

type memSlot struct {
	mu sync.Mutex
	v  string
}

func (m *memSlot) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, nil
}
func (m *memSlot) Set(_ context.Context, t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = t
	return nil
}
func (m *memSlot) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = ""
	return nil
}

type nopHeader struct{}

func (nopHeader) SetAccessToken(string) {}
func (nopHeader) ClearAccessToken()     {}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Emit(_ context.Context, e events.Event) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return e
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.Kind)
	}
	return out
}

func setup(api *fakeAPI) (*Coordinator, *session.Store, *memSlot, *recorder) {
	slot := &memSlot{}
	store := session.NewStore(slot, nopHeader{}, logging.Nop())
	rec := &recorder{}
	return New(api, store, rec, logging.Nop()), store, slot, rec
}

func TestRefresh_InstallsTokenAndProfile(t *testing.T) {
	api := &fakeAPI{token: "n.e.w", profile: &client.Profile{ID: "5", Username: "eve", Email: "e@x.io"}}
	c, store, slot, rec := setup(api)

	s, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "n.e.w", s.AccessToken)
	require.Equal(t, "5", s.UserID)
	require.Equal(t, "eve", s.Username)
	require.Equal(t, "e@x.io", s.Profile.Email)
	require.False(t, s.SecondaryFactorVerified)

	cur, ok := store.Current()
	require.True(t, ok)
	require.Equal(t, *s, cur)
	require.Equal(t, "n.e.w", slot.v)
	require.Empty(t, rec.kinds())
}

func TestRefresh_KeepsSecondFactorForSamePrincipal(t *testing.T) {
	api := &fakeAPI{token: "n.e.w", profile: &client.Profile{ID: "5", Username: "eve"}}
	c, store, _, _ := setup(api)
	ctx := context.Background()

	require.NoError(t, store.Install(ctx, session.Session{UserID: "5", AccessToken: "o.l.d"}))
	store.SetSecondaryFactorVerified(true)

	s, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, s.SecondaryFactorVerified)

	api.profile = &client.Profile{ID: "6", Username: "mallory"}
	s, err = c.Refresh(ctx)
	require.NoError(t, err)
	require.False(t, s.SecondaryFactorVerified)
}

func TestRefresh_FailureClearsStoreAndSignalsExpiry(t *testing.T) {
	cause := &client.APIError{Kind: client.KindUnauthorized, Detail: "Refresh token expired"}
	api := &fakeAPI{refreshErr: cause}
	c, store, slot, rec := setup(api)
	ctx := context.Background()
	require.NoError(t, store.Install(ctx, session.Session{UserID: "1", AccessToken: "o.l.d"}))

	s, err := c.Refresh(ctx)
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	_, ok := store.Current()
	require.False(t, ok)
	require.Empty(t, slot.v)
	require.Equal(t, []events.Kind{events.KindAuthError}, rec.kinds())
	require.EqualValues(t, 1, api.refreshCalls, "never retried in a loop")
}

func TestRefresh_FailureRunsExpiryTeardown(t *testing.T) {
	api := &fakeAPI{refreshErr: &client.APIError{Kind: client.KindUnauthorized}}
	c, store, _, rec := setup(api)
	ctx := context.Background()
	require.NoError(t, store.Install(ctx, session.Session{UserID: "1", AccessToken: "o.l.d"}))

	var seen []bool
	c.OnExpired(func(context.Context) {
		_, ok := store.Current()
		seen = append(seen, ok)
	})

	_, err := c.Refresh(ctx)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.Equal(t, []bool{false}, seen, "teardown runs once, after the store is cleared")
	require.Len(t, rec.kinds(), 1)

	api.refreshErr = nil
	api.token = "n.e.w"
	api.profile = &client.Profile{ID: "1"}
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, seen, 1)
}

func TestRefresh_MalformedTokenIsExpiry(t *testing.T) {
	api := &fakeAPI{token: "garbage"}
	c, _, slot, _ := setup(api)

	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	require.ErrorIs(t, err, session.ErrInvalidToken)
	require.Empty(t, slot.v)
	require.Zero(t, api.meCalls)
}

func TestRefresh_ProfileFailureIsExpiry(t *testing.T) {
	api := &fakeAPI{token: "n.e.w", meErrs: []error{&client.APIError{Kind: client.KindNetwork}}}
	c, store, _, _ := setup(api)

	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	_, ok := store.Current()
	require.False(t, ok)
}

func TestRefresh_ConcurrentCallersShareOneAttempt(t *testing.T) {
	api := &fakeAPI{token: "n.e.w", profile: &client.Profile{ID: "1"}, release: make(chan struct{})}
	c, _, _, _ := setup(api)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&api.refreshCalls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&api.refreshCalls))
}

func TestRefresh_UsesNoRetryContext(t *testing.T) {
	var sawNoRetry bool
	api := &ctxAPI{check: func(ctx context.Context) {
		sawNoRetry = client.RetryDisabled(ctx)
	}}
	c := New(api, session.NewStore(&memSlot{}, nopHeader{}, nil), &recorder{}, nil)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, sawNoRetry)
}

type ctxAPI struct {
	check func(ctx context.Context)
}

func (a *ctxAPI) Refresh(ctx context.Context) (string, error) {
	a.check(ctx)
	return "a.b.c", nil
}
func (a *ctxAPI) Me(context.Context) (*client.Profile, error) { return &client.Profile{ID: "1"}, nil }
func (a *ctxAPI) HasRefreshCredential() bool                  { return false }

func TestBootstrap_NothingStoredNoCookie(t *testing.T) {
	api := &fakeAPI{}
	c, _, _, _ := setup(api)

	s, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Nil(t, s)
	require.Zero(t, api.refreshCalls)
}

func TestBootstrap_CookieOnly_Refreshes(t *testing.T) {
	api := &fakeAPI{hasCookie: true, token: "n.e.w", profile: &client.Profile{ID: "3", Username: "c"}}
	c, _, _, _ := setup(api)

	s, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3", s.UserID)
	require.EqualValues(t, 1, api.refreshCalls)
}

func TestBootstrap_RestoredToken_FetchesProfile(t *testing.T) {
	api := &fakeAPI{profile: &client.Profile{ID: "9", Username: "ivy", Avatar: "i.png"}}
	c, store, slot, _ := setup(api)
	slot.v = "h.p.s"

	s, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, "h.p.s", s.AccessToken)
	require.Equal(t, "ivy", s.Username)
	require.Equal(t, "i.png", s.Profile.Avatar)
	require.False(t, s.SecondaryFactorVerified)
	require.Zero(t, api.refreshCalls)

	cur, _ := store.Current()
	require.Equal(t, *s, cur)
}

func TestBootstrap_RestoredTokenRejectedAfterHook_Expires(t *testing.T) {
	api := &fakeAPI{
		token:   "n.e.w",
		profile: &client.Profile{ID: "9"},
		meErrs:  []error{&client.APIError{Kind: client.KindUnauthorized}},
	}
	c, store, slot, rec := setup(api)
	var expired int
	c.OnExpired(func(context.Context) { expired++ })
	slot.v = "o.l.d"

	s, err := c.Bootstrap(context.Background())
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.Zero(t, api.refreshCalls, "the client hook owns the refresh")

	_, ok := store.Current()
	require.False(t, ok)
	require.Empty(t, slot.v)
	require.Equal(t, []events.Kind{events.KindAuthError}, rec.kinds())
	require.Equal(t, 1, expired)
}

func TestBootstrap_ServerDown_KeepsRestoredSession(t *testing.T) {
	api := &fakeAPI{meErrs: []error{&client.APIError{Kind: client.KindNetwork}}}
	c, _, slot, rec := setup(api)
	slot.v = "h.p.s"

	s, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, "h.p.s", s.AccessToken)
	require.Equal(t, []events.Kind{events.KindWarning}, rec.kinds())
}

func TestBootstrap_ExpiredDuringHook(t *testing.T) {
	api := &fakeAPI{meErrs: []error{fmtExpired()}}
	c, _, slot, _ := setup(api)
	slot.v = "h.p.s"

	s, err := c.Bootstrap(context.Background())
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.Zero(t, api.refreshCalls)
}

func fmtExpired() error {
	return errors.Join(ErrAuthExpired, client.ErrUnauthorized)
}
