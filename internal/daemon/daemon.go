// Package daemon assembles the planday process: storage backend, plan
// session, timer, event bus, activity log, and the unix-socket intent
// surface.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/stakaya/planday/internal/config"
	"github.com/stakaya/planday/internal/events"
	"github.com/stakaya/planday/internal/identity"
	"github.com/stakaya/planday/internal/lock"
	"github.com/stakaya/planday/internal/model"
	"github.com/stakaya/planday/internal/notify"
	"github.com/stakaya/planday/internal/plan"
	"github.com/stakaya/planday/internal/store"
	"github.com/stakaya/planday/internal/timer"
	"github.com/stakaya/planday/internal/uds"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Daemon is the planday daemon process.
type Daemon struct {
	plannerDir string
	cfg        config.Config
	logLevel   LogLevel
	logger     *log.Logger
	logFile    io.Closer

	fileLock *lock.FileLock
	server   *uds.Server
	st       store.Store
	bus      *events.Bus
	session  *plan.Session
	timer    *timer.Timer
	activity *events.ActivityLog
	unsubs   []func()

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	shutdown sync.Once
}

// New creates a daemon rooted at plannerDir, logging to logs/daemon.log.
func New(plannerDir string, cfg config.Config) (*Daemon, error) {
	logPath := filepath.Join(plannerDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}
	return newDaemon(plannerDir, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(plannerDir string, cfg config.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	logger := log.New(w, "", log.LstdFlags)
	socketPath := filepath.Join(plannerDir, uds.DefaultSocketName)

	return &Daemon{
		plannerDir: plannerDir,
		cfg:        cfg,
		logLevel:   parseLogLevel(cfg.Logging.Level),
		logger:     logger,
		logFile:    closer,
		fileLock:   lock.NewFileLock(filepath.Join(plannerDir, "locks", "daemon.lock")),
		server:     uds.NewServer(socketPath, logger),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := os.MkdirAll(filepath.Join(d.plannerDir, "locks"), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log(LogLevelInfo, "daemon starting pid=%d", os.Getpid())

	st, err := d.openStore()
	if err != nil {
		d.fileLock.Unlock()
		return err
	}
	d.st = st

	d.bus = events.NewBus(64)

	activity, err := events.NewActivityLog(filepath.Join(d.plannerDir, "logs", "activity.jsonl"))
	if err != nil {
		d.cleanup()
		return err
	}
	d.activity = activity
	for _, et := range []events.EventType{
		events.EventPlanUpdated,
		events.EventTimerStarted,
		events.EventTimerStopped,
		events.EventTimerExpired,
	} {
		d.unsubs = append(d.unsubs, d.bus.Subscribe(et, func(ev events.Event) {
			if err := d.activity.Append(ev); err != nil {
				d.log(LogLevelWarn, "activity log: %v", err)
			}
		}))
	}

	provider := identity.NewStatic(d.cfg.User.ID)
	today := model.DateKey(time.Now())
	d.session = plan.NewSession(d.st, provider, d.bus, d.logger, today)
	d.session.Start(d.ctx)

	d.timer = timer.New(time.Duration(d.cfg.Timer.TickIntervalMs)*time.Millisecond, d.bus, d.logger)
	if d.cfg.Notify.Enabled {
		d.timer.SetNotifier(notify.Send)
	}

	d.registerHandlers()

	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start UDS server: %w", err)
	}
	d.log(LogLevelInfo, "listening on %s date=%s backend=%s",
		filepath.Join(d.plannerDir, uds.DefaultSocketName), today, d.cfg.Storage.Backend)

	d.waitSignals()
	return nil
}

func (d *Daemon) openStore() (store.Store, error) {
	switch d.cfg.Storage.Backend {
	case config.BackendSQLite:
		path := filepath.Join(d.plannerDir, "plans", "plans.db")
		return store.OpenSQLite(d.ctx, path, d.cfg.Storage.Instance,
			time.Duration(d.cfg.Storage.PollIntervalMs)*time.Millisecond)
	default:
		return store.NewFileStore(filepath.Join(d.plannerDir, "plans"), d.cfg.Storage.Instance)
	}
}

func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.log(LogLevelInfo, "signal received: %v", sig)
		d.Shutdown()
	case <-d.done:
	}
	<-d.done
}

// Shutdown stops the daemon once: the intent surface first, then the session
// (draining pending write-throughs), then the timer and store.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(LogLevelInfo, "daemon shutting down")

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			d.cleanup()
		}()

		timeout := time.Duration(d.cfg.Daemon.ShutdownTimeoutSec) * time.Second
		select {
		case <-finished:
		case <-time.After(timeout):
			d.log(LogLevelError, "shutdown timed out after %s", timeout)
		}
		close(d.done)
	})
}

func (d *Daemon) cleanup() {
	if d.server != nil {
		_ = d.server.Stop()
	}
	if d.session != nil {
		d.session.Close()
	}
	if d.timer != nil {
		d.timer.Close()
	}
	for _, unsub := range d.unsubs {
		unsub()
	}
	if d.bus != nil {
		d.bus.Close()
	}
	if d.activity != nil {
		_ = d.activity.Close()
	}
	if d.st != nil {
		_ = d.st.Close()
	}
	d.cancel()
	_ = d.fileLock.Unlock()
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}

func (d *Daemon) log(level LogLevel, format string, args ...any) {
	if level < d.logLevel {
		return
	}
	prefix := [...]string{"DEBUG", "INFO", "WARN", "ERROR"}[level]
	d.logger.Printf("[%s] "+format, append([]any{prefix}, args...)...)
}
