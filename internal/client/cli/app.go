package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
	"github.com/dmitrijs2005/mycocore/internal/client/config"
	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/events/natsbus"
	"github.com/dmitrijs2005/mycocore/internal/client/events/redisbus"
	"github.com/dmitrijs2005/mycocore/internal/client/gate"
	"github.com/dmitrijs2005/mycocore/internal/client/realtime"
	"github.com/dmitrijs2005/mycocore/internal/client/refresh"
	"github.com/dmitrijs2005/mycocore/internal/client/repositories/eventlog"
	"github.com/dmitrijs2005/mycocore/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mycocore/internal/client/services"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

type App struct {
	config *config.Config
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer

	db        *sql.DB
	api       *client.HTTPClient
	transport events.Transport
	channel   *events.Channel
	store     *session.Store
	eventLog  *events.Log
	link      *realtime.Supervisor
	coord     *refresh.Coordinator
	gate      *gate.Gate
	auth      services.AuthService

	unsubscribe []func()
}

// NewApp builds every component from c. The returned App owns the database
// and the broadcast transport; release them with Close.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}
	a := &App{config: c, log: log, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	db, err := client.OpenDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a.db = db

	api, err := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.api = api

	transport, err := openTransport(ctx, c, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.transport = transport

	channel, err := events.NewChannel(ctx, uuid.NewString(), transport, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.channel = channel

	a.store = session.NewStore(session.NewSlotStorage(metadata.NewSQLiteRepository(db)), api, log)
	a.eventLog = events.NewLog(c.LogCapacity, events.NewDeduplicator(c.RecencyCapacity), eventlog.NewSQLiteRepository(db), log)

	a.link = realtime.NewSupervisor(realtime.Config{
		URL: c.RealtimeURL,
		Backoff: realtime.Backoff{
			Base:        c.ReconnectBaseDelay,
			Max:         c.ReconnectMaxDelay,
			MaxAttempts: c.ReconnectMaxAttempts,
		},
	}, realtime.NewWebsocketDialer(c.RequestTimeout), realtime.TimerScheduler{}, a.store, channel, log)

	a.coord = refresh.New(api, a.store, channel, log)
	api.SetUnauthorizedHook(a.coord.Hook())

	a.gate = gate.New(c.PinLength, api, a.store, channel, log)
	a.coord.OnExpired(a.expire)

	a.auth = services.NewAuthService(services.Deps{
		Client: api,
		Store:  a.store,
		Gate:   a.gate,
		Link:   a.link,
		Log:    a.eventLog,
		Events: channel,
	}, log)

	a.unsubscribe = append(a.unsubscribe,
		channel.Subscribe(a.eventLog.Listener()),
		a.store.Follow(channel),
		channel.Subscribe(a.printEvent),
	)
	return a, nil
}

func openTransport(ctx context.Context, c *config.Config, log logging.Logger) (events.Transport, error) {
	switch c.BroadcastDriver {
	case config.BroadcastRedis:
		t, err := redisbus.New(ctx, c.RedisAddr, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis broadcast: %w", err)
		}
		return t, nil
	case config.BroadcastNATS:
		t, err := natsbus.New(c.NatsURL, "mycocore-client", log)
		if err != nil {
			return nil, fmt.Errorf("failed to open nats broadcast: %w", err)
		}
		return t, nil
	default:
		return events.NewMemoryBus(), nil
	}
}

// Run restores the previous session, then serves the REPL until exit.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to mycocore CLI (type 'help' for commands)")
	a.bootstrap(ctx)

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) bootstrap(ctx context.Context) {
	sess, err := a.coord.Bootstrap(ctx)
	if err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
		return
	}
	if sess == nil {
		return
	}
	if err := a.eventLog.Load(ctx, sess.UserID); err != nil {
		a.log.Warn(ctx, "failed to load event log", "error", err)
	}
	if err := a.link.Start(ctx, sess.UserID); err != nil {
		a.log.Warn(ctx, "realtime link not started", "error", err)
	}
	printlnFn(fmt.Sprintf("Welcome back, %s. Enter your PIN with 'pin'.", sess.Username))
}

// expire drops what a session held outside the store once a refresh has
// failed: the socket, the unlocked gate and the user's log.
func (a *App) expire(ctx context.Context) {
	a.link.Stop()
	a.gate.Reset()
	a.eventLog.Unload()
	a.log.Info(ctx, "session torn down after refresh failure")
}

// Close stops the realtime link and releases the transport and database.
func (a *App) Close() {
	ctx := context.Background()
	if a.link != nil {
		a.link.Stop()
	}
	for _, u := range a.unsubscribe {
		u()
	}
	a.unsubscribe = nil
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			a.log.Warn(ctx, "failed to close event channel", "error", err)
		}
		a.channel = nil
	}
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.log.Warn(ctx, "failed to close broadcast transport", "error", err)
		}
		a.transport = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(ctx, "failed to close database", "error", err)
		}
		a.db = nil
	}
}

func (a *App) isLoggedIn() bool {
	_, ok := a.store.Current()
	return ok
}

func (a *App) isUnlocked() bool {
	return a.isLoggedIn() && a.gate.State() == gate.Unlocked
}

func (a *App) status() string {
	sess, ok := a.store.Current()
	if !ok {
		return "(logged out)"
	}
	return fmt.Sprintf("(%s %s %s)", sess.Username, a.gate.State(), a.link.State())
}

// printEvent shows live events. Until the PIN is verified only
// authentication outcomes are shown.
func (a *App) printEvent(e events.Event) {
	if !a.isUnlocked() && e.Kind != events.KindAuthSuccess && e.Kind != events.KindAuthError {
		return
	}
	printlnFn(formatEvent(e))
}

func formatEvent(e events.Event) string {
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Kind, e.Message)
}
