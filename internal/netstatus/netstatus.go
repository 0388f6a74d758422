// Package netstatus provides connectivity probing and change notification.
//
// The rest of the data layer treats connectivity as advisory: a sync run
// always re-checks the probe before touching the remote, regardless of the
// last observation the monitor delivered.
package netstatus

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Checker probes current connectivity. Implementations must be cheap
// enough to call at the start of every sync attempt.
type Checker interface {
	// Check returns true when the remote is currently reachable.
	Check(ctx context.Context) bool
}

// DialChecker probes connectivity by opening a TCP connection.
type DialChecker struct {
	// Addr is the host:port to dial.
	Addr string
	// Timeout bounds the dial attempt (default: 2s).
	Timeout time.Duration
}

// Check implements Checker.
func (c *DialChecker) Check(ctx context.Context) bool {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// PathChecker probes reachability of a filesystem path. Used with the
// directory-backed remote, where "offline" means the share is unmounted.
type PathChecker struct {
	Path string
}

// Check implements Checker.
func (c *PathChecker) Check(ctx context.Context) bool {
	_, err := os.Stat(c.Path)
	return err == nil
}

// StaticChecker always reports a fixed state. Used in tests.
type StaticChecker struct {
	mu     sync.Mutex
	online bool
}

// NewStaticChecker creates a checker pinned to the given state.
func NewStaticChecker(online bool) *StaticChecker {
	return &StaticChecker{online: online}
}

// Check implements Checker.
func (c *StaticChecker) Check(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline flips the reported state.
func (c *StaticChecker) SetOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = online
}

// Change is a connectivity transition delivered to subscribers.
type Change struct {
	Online bool
	At     time.Time
}

// Monitor polls a Checker and fans out transitions to subscribers.
//
// Delivery is at-least-once: the first poll after Start always notifies,
// and a slow subscriber may observe repeated "online" notifications.
// Subscribers must be idempotent.
type Monitor struct {
	checker  Checker
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	subs    []chan Change
	running bool
	last    bool
	primed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMonitor creates a monitor polling checker at the given interval.
// If logger is nil, a default logger writing to stderr is used.
func NewMonitor(checker Checker, interval time.Duration, logger *log.Logger) *Monitor {
	if interval == 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[netstatus] ", log.LstdFlags)
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Subscribe registers a new listener. Must be called before Start.
// The returned channel is buffered; transitions that cannot be delivered
// to a full channel are dropped for that subscriber.
func (m *Monitor) Subscribe() <-chan Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Change, 8)
	m.subs = append(m.subs, ch)
	return ch
}

// Start begins polling. Returns an error if already running.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor already running")
	}
	m.running = true

	m.wg.Add(1)
	go m.poll()
	return nil
}

// Stop stops polling and closes subscriber channels.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
	m.mu.Unlock()

	return nil
}

// Online returns the last observed state. Advisory only; callers that are
// about to sync must re-check via the Checker.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// poll is the monitor loop.
func (m *Monitor) poll() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Prime immediately so subscribers learn the initial state without
	// waiting a full interval.
	m.observe()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.observe()
		}
	}
}

// observe runs one probe and notifies on transition (or first observation).
func (m *Monitor) observe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	online := m.checker.Check(ctx)
	cancel()

	m.mu.Lock()
	changed := !m.primed || online != m.last
	m.primed = true
	m.last = online
	subs := make([]chan Change, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Printf("Connectivity changed: online=%v", online)
	change := Change{Online: online, At: time.Now()}
	for _, ch := range subs {
		select {
		case ch <- change:
		default:
			// Subscriber is not keeping up; it will re-check anyway.
		}
	}
}
