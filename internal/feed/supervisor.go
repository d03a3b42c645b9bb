package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// ReconnectPolicy shapes the delay between connection attempts.
type ReconnectPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	Randomization float64
}

// DefaultReconnectPolicy starts at 5s and doubles up to a minute.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay:  5 * time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2,
		Randomization: 0.2,
	}
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Randomization
	b.MaxElapsedTime = 0
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

type SupervisorConfig struct {
	URL          string
	Subscription Subscription
	Reconnect    ReconnectPolicy
}

// Status is a point-in-time view of the feed connection.
type Status struct {
	Endpoint       string    `json:"endpoint"`
	Connected      bool      `json:"connected"`
	State          string    `json:"state"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Connects       int64     `json:"connects"`
	Reconnects     int64     `json:"reconnects"`
	LastError      string    `json:"last_error,omitempty"`
	LastFrameAt    time.Time `json:"last_frame_at,omitempty"`
}

// Supervisor keeps exactly one session alive, re-dialing after every
// termination until its context is cancelled.
type Supervisor struct {
	cfg     SupervisorConfig
	dialer  Dialer
	handler TxHandler
	metrics *metrics.Metrics
	log     *logger.Logger

	mu         sync.RWMutex
	session    *Session
	connects   int64
	reconnects int64
	lastError  string
	lastFrame  time.Time
}

func NewSupervisor(cfg SupervisorConfig, dialer Dialer, handler TxHandler, m *metrics.Metrics, log *logger.Logger) *Supervisor {
	if log == nil {
		log = logger.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.Reconnect.InitialDelay <= 0 {
		cfg.Reconnect = DefaultReconnectPolicy()
	}
	return &Supervisor{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		metrics: m,
		log:     log,
	}
}

// Run returns nil once ctx is cancelled. It never gives up on its own.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := s.cfg.Reconnect.backOff()
	endpoint := MaskURL(s.cfg.URL)

	for {
		s.log.Info("Connecting to %s", endpoint)
		streamed, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.log.Info("Feed supervisor stopping")
			return nil
		}

		if streamed {
			bo.Reset()
		}
		s.recordFailure(err)
		delay := bo.NextBackOff()
		s.log.Warn("Connection lost: %s. Reconnecting in %s", describe(err), delay.Round(time.Millisecond))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Feed supervisor stopping")
			return nil
		case <-timer.C:
		}
	}
}

// runOnce dials and runs a single session. streamed reports whether the
// session got far enough to read a frame.
func (s *Supervisor) runOnce(ctx context.Context) (streamed bool, err error) {
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	if err != nil {
		return false, &apperrors.FeedError{Operation: "dial", Err: err}
	}
	defer conn.Close()

	session := NewSession(conn, s.cfg.Subscription, s.handler, s.metrics, s.log)
	s.mu.Lock()
	s.session = session
	s.connects++
	s.mu.Unlock()
	s.metrics.Connects.Inc()
	s.metrics.Connected.Set(1)
	s.log.Info("Connected to %s", MaskURL(s.cfg.URL))

	err = session.Run(ctx)

	s.metrics.Connected.Set(0)
	s.mu.Lock()
	s.session = nil
	if t := session.LastFrameAt(); !t.IsZero() {
		s.lastFrame = t
	}
	s.mu.Unlock()

	return session.Frames() > 0, err
}

func (s *Supervisor) recordFailure(err error) {
	s.metrics.Reconnects.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Endpoint:    MaskURL(s.cfg.URL),
		State:       StateClosed.String(),
		Connects:    s.connects,
		Reconnects:  s.reconnects,
		LastError:   s.lastError,
		LastFrameAt: s.lastFrame,
	}
	if s.session != nil {
		st.Connected = true
		st.State = s.session.State().String()
		st.SubscriptionID = s.session.SubscriptionID()
		if t := s.session.LastFrameAt(); !t.IsZero() {
			st.LastFrameAt = t
		}
	}
	return st
}

// describe renders a session termination cause, pulling out the close code
// and reason when the server sent a close frame.
func describe(err error) string {
	if err == nil {
		return "connection closed"
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		reason := closeErr.Text
		if reason == "" {
			reason = "no reason"
		}
		return fmt.Sprintf("closed by server (code %d: %s)", closeErr.Code, reason)
	}
	return err.Error()
}

// MaskURL hides the API key that providers embed in the endpoint path.
func MaskURL(raw string) string {
	if i := strings.Index(raw, "/v2/"); i >= 0 {
		return raw[:i] + "/v2/***"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/***"
}
