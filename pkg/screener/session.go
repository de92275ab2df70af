package screener

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/devices"
)

// Manager owns one shared browser process and every isolated context
// created from it. Contexts are only reachable through the Session handles
// it hands out, so nothing can keep one alive past its capture.
type Manager struct {
	driver  Driver
	browser Browser
	active  map[string]*Session
	mutex   sync.Mutex

	signals      chan os.Signal
	stopHook     chan struct{}
	exit         func(code int)
	shuttingDown bool // set by the signal hook, blocks relaunching
}

// ErrShuttingDown is returned by Launch and NewContext once a signal has
// started closing the browser.
var ErrShuttingDown = errors.New("browser is shutting down")

// Session is a handle to one tracked BrowserContext.
type Session struct {
	ID     string
	Device devices.Device

	context BrowserContext
	once    sync.Once
	err     error
}

// NewManager returns a Manager that launches browsers through driver.
func NewManager(driver Driver) *Manager {
	return &Manager{
		driver: driver,
		active: make(map[string]*Session),
		exit:   os.Exit,
	}
}

// Launch starts the browser unless it is already running.
func (m *Manager) Launch(ctx context.Context) (Browser, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.launchLocked(ctx)
}

func (m *Manager) launchLocked(ctx context.Context) (Browser, error) {
	if m.shuttingDown {
		return nil, ErrShuttingDown
	}
	if m.browser != nil {
		return m.browser, nil
	}

	log.Debugf("Launching %s browser", m.driver.Name())

	browser, err := m.driver.Launch(ctx)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	m.browser = browser
	m.installSignalHook()

	return browser, nil
}

// NewContext creates an isolated context emulating device, launching the
// browser first if needed. The caller must pass the session to CloseContext.
func (m *Manager) NewContext(ctx context.Context, device devices.Device) (*Session, error) {
	m.mutex.Lock()
	browser, err := m.launchLocked(ctx)
	m.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(ctx, ContextOptionsFor(device))
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:      uuid.NewString(),
		Device:  device,
		context: bctx,
	}

	m.mutex.Lock()
	m.active[session.ID] = session
	m.mutex.Unlock()

	log.Debugf("Opened context %s for %s", session.ID, device.Name)
	return session, nil
}

// NewPage opens a tab inside the session's context.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	return s.context.NewPage(ctx)
}

// CloseContext releases a session. Closing an already closed session is a no-op.
func (m *Manager) CloseContext(session *Session) error {
	if session == nil {
		return nil
	}

	m.mutex.Lock()
	delete(m.active, session.ID)
	m.mutex.Unlock()

	session.once.Do(func() {
		session.err = session.context.Close()
		log.Debugf("Closed context %s for %s", session.ID, session.Device.Name)
	})

	return session.err
}

// ActiveContexts returns the number of sessions that have not been closed.
func (m *Manager) ActiveContexts() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.active)
}

// Close closes every tracked context (ignoring their errors), then the
// browser, then removes the signal hook.
func (m *Manager) Close() error {
	m.mutex.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for _, s := range m.active {
		sessions = append(sessions, s)
	}
	m.mutex.Unlock()

	for _, s := range sessions {
		if err := m.CloseContext(s); err != nil {
			log.Debugf("Ignoring error closing context %s: %v", s.ID, err)
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.removeSignalHook()

	return err
}

// installSignalHook registers the SIGINT/SIGTERM handler once per launch.
// Must be called with m.mutex held.
func (m *Manager) installSignalHook() {
	if m.signals != nil {
		return
	}

	m.signals = make(chan os.Signal, 1)
	m.stopHook = make(chan struct{})
	signal.Notify(m.signals, os.Interrupt, syscall.SIGTERM)

	go func(signals <-chan os.Signal, stop <-chan struct{}) {
		select {
		case sig := <-signals:
			log.Warnf("Received %v, closing browser", sig)
			m.mutex.Lock()
			m.shuttingDown = true
			m.mutex.Unlock()
			if err := m.Close(); err != nil {
				log.Debugf("Error closing browser: %v", err)
			}
			m.exit(130)
		case <-stop:
		}
	}(m.signals, m.stopHook)
}

// removeSignalHook undoes installSignalHook. Must be called with m.mutex held.
func (m *Manager) removeSignalHook() {
	if m.signals == nil {
		return
	}

	signal.Stop(m.signals)
	close(m.stopHook)
	m.signals = nil
	m.stopHook = nil
}
