package session

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Session timing defaults, applied by New for zero-valued config fields.
const (
	defaultKeepAlive        = 30 * time.Second
	defaultConnectTimeout   = 10 * time.Second
	defaultPublishTimeout   = 5 * time.Second
	defaultReconnectInitial = 1 * time.Second
	defaultReconnectMax     = 60 * time.Second

	// disconnectQuiesce is the time allowed for in-flight work on disconnect.
	disconnectQuiesce = 250 // milliseconds

	// tlsMinVersion is the minimum TLS version for broker connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDPrefix namespaces our client ids on the shared cloud broker.
	clientIDPrefix = "printwatch"
)

// Status is the connection lifecycle state of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusDegraded   Status = "degraded"
	StatusClosed     Status = "closed"
)

// CredentialProvider supplies the broker password (a cloud access token) for
// an account. It is consulted on every connect attempt so token refreshes
// are picked up without restarting the session.
type CredentialProvider interface {
	Credential(accountID string) (string, error)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on the paho receive path and should hand work off quickly.
// A returned error is logged but does not affect message acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Logger defines the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds broker and timing settings for one session.
type Config struct {
	// BrokerHost and BrokerPort locate the cloud MQTT broker.
	BrokerHost string
	BrokerPort int

	// TLS enables a secured connection. Required by the production broker.
	TLS bool

	// AccountID forms the broker username ("u_<accountID>").
	AccountID string

	// DeviceID is the printer serial this session serves. Used for client
	// identification and logging only; topic routing is the caller's concern.
	DeviceID string

	// QoS is the delivery guarantee level for subscriptions and publishes.
	QoS byte

	// KeepAlive is the MQTT ping interval.
	KeepAlive time.Duration

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration

	// PublishTimeout bounds the wait for publish handoff to the broker.
	PublishTimeout time.Duration

	// ReconnectInitial and ReconnectMax bound the reconnect backoff.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// ActivityGrace degrades and recycles the connection when no inbound
	// traffic arrives for this long. Zero disables the watchdog.
	ActivityGrace time.Duration
}

// Options holds everything needed to construct a Session.
type Options struct {
	// Config is the broker and timing configuration.
	Config Config

	// Credentials supplies the broker password. Required.
	Credentials CredentialProvider

	// Handler receives every inbound message. Optional.
	Handler MessageHandler

	// OnStatus is invoked on every lifecycle transition. Optional.
	OnStatus func(Status)

	// Logger is an optional structured logger.
	Logger Logger
}

// mqttClient is the subset of the paho client the session uses.
// Narrowed so tests can substitute a fake through the client factory.
type mqttClient interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
	IsConnected() bool
}

var _ mqttClient = (pahomqtt.Client)(nil)

// Session owns one broker connection's lifecycle for a single printer.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	cfg      Config
	creds    CredentialProvider
	handler  MessageHandler
	onStatus func(Status)
	logger   Logger

	// newClient builds the underlying MQTT client. Tests replace this
	// before Start to inject a fake transport.
	newClient func(opts *pahomqtt.ClientOptions) mqttClient

	mu          sync.Mutex
	status      Status
	subs        map[string]struct{}
	client      mqttClient
	lost        chan struct{}
	lastInbound time.Time
	started     bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a session. Call Start() to begin connecting.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg.BrokerHost == "" {
		return nil, fmt.Errorf("%w: broker host is required", ErrConnectFailed)
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrConnectFailed)
	}
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrConnectFailed)
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("%w: credential provider is required", ErrConnectFailed)
	}

	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Session{
		cfg:      cfg,
		creds:    opts.Credentials,
		handler:  opts.Handler,
		onStatus: opts.OnStatus,
		logger:   logger,
		newClient: func(o *pahomqtt.ClientOptions) mqttClient {
			return pahomqtt.NewClient(o)
		},
		status: StatusIdle,
		subs:   make(map[string]struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the connect/reconnect loop. Safe to call once; subsequent
// calls are no-ops. Returns ErrClosed after Stop().
func (s *Session) Start() error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop shuts the session down: the transport is closed, pending reconnect
// timers are cancelled, and the worker exits. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.disconnect()
		s.setStatus(StatusClosed)
	})
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers a topic for this session. Idempotent; the subscription
// is applied immediately when connected and restored after every reconnect.
func (s *Session) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, exists := s.subs[topic]; exists {
		s.mu.Unlock()
		return nil
	}
	s.subs[topic] = struct{}{}
	client := s.client
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || client == nil {
		return nil // Applied on next connect.
	}
	// Kept tracked on failure; the next reconnect retries it.
	token := client.Subscribe(topic, s.cfg.QoS, s.inbound)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %q", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Unsubscribe removes a topic from this session. Idempotent.
func (s *Session) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	s.mu.Lock()
	if _, exists := s.subs[topic]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.subs, topic)
	client := s.client
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || client == nil {
		return nil
	}
	token := client.Unsubscribe(topic)
	token.WaitTimeout(s.cfg.PublishTimeout)
	return token.Error()
}

// Publish sends a payload to a topic. Fire-and-forget at the transport
// layer: a nil return means the broker accepted the message, not that the
// printer acted on it. Delivery confirmation, where it exists, arrives as an
// inbound report handled elsewhere.
func (s *Session) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	s.mu.Lock()
	client := s.client
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || client == nil {
		return ErrNotConnected
	}

	token := client.Publish(topic, s.cfg.QoS, false, payload)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, s.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// run is the connect/reconnect loop. It never gives up: a monitored printer
// may be offline for days and must be picked up when it returns.
func (s *Session) run() {
	defer s.wg.Done()

	backoff := Backoff{Initial: s.cfg.ReconnectInitial, Max: s.cfg.ReconnectMax}
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.setStatus(StatusConnecting)
		if err := s.connect(); err != nil {
			s.logger.Warn("connect attempt failed",
				"device_id", s.cfg.DeviceID,
				"attempt", backoff.Attempts()+1,
				"error", err,
			)
			s.setStatus(StatusIdle)
			if !s.sleep(backoff.Next()) {
				return
			}
			continue
		}

		backoff.Reset()
		s.setStatus(StatusConnected)
		s.logger.Info("session connected",
			"device_id", s.cfg.DeviceID,
			"broker", fmt.Sprintf("%s:%d", s.cfg.BrokerHost, s.cfg.BrokerPort),
		)

		if !s.serve() {
			s.disconnect()
			return
		}

		s.setStatus(StatusIdle)
		if !s.sleep(backoff.Next()) {
			return
		}
	}
}

// connect performs one full connect attempt: credential lookup, TLS session
// establishment, authentication, and re-subscription of tracked topics.
func (s *Session) connect() error {
	password, err := s.creds.Credential(s.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("%w: resolving credential: %w", ErrConnectFailed, err)
	}

	lost := make(chan struct{})
	var lostOnce sync.Once

	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if s.cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, s.cfg.BrokerHost, s.cfg.BrokerPort))
	opts.SetClientID(clientID(s.cfg.DeviceID))
	opts.SetUsername("u_" + s.cfg.AccountID)
	opts.SetPassword(password)
	opts.SetCleanSession(true)
	// The session owns retry; paho must not reconnect behind its back.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetKeepAlive(s.cfg.KeepAlive)
	opts.SetPingTimeout(s.cfg.KeepAlive / 2)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, lostErr error) {
		s.logger.Warn("connection lost", "device_id", s.cfg.DeviceID, "error", lostErr)
		lostOnce.Do(func() { close(lost) })
	})

	client := s.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("%w: after %v", ErrConnectTimeout, s.cfg.ConnectTimeout)
	}
	if connErr := token.Error(); connErr != nil {
		return classifyConnectError(connErr)
	}

	s.mu.Lock()
	s.client = client
	s.lost = lost
	s.lastInbound = time.Now()
	topics := make([]string, 0, len(s.subs))
	for topic := range s.subs {
		topics = append(topics, topic)
	}
	s.mu.Unlock()

	for _, topic := range topics {
		subToken := client.Subscribe(topic, s.cfg.QoS, s.inbound)
		if !subToken.WaitTimeout(s.cfg.PublishTimeout) || subToken.Error() != nil {
			// Tracked subscriptions are retried on the next reconnect.
			s.logger.Warn("subscription restore failed",
				"device_id", s.cfg.DeviceID,
				"topic", topic,
				"error", subToken.Error(),
			)
		}
	}
	return nil
}

// serve blocks while the connection is up, watching for loss, shutdown, and
// watchdog expiry. Returns false when the session is shutting down.
func (s *Session) serve() bool {
	s.mu.Lock()
	lost := s.lost
	s.mu.Unlock()

	var watchdogC <-chan time.Time
	if s.cfg.ActivityGrace > 0 {
		ticker := time.NewTicker(s.cfg.ActivityGrace / 2)
		defer ticker.Stop()
		watchdogC = ticker.C
	}

	for {
		select {
		case <-s.done:
			return false
		case <-lost:
			return true
		case <-watchdogC:
			if time.Since(s.activity()) <= s.cfg.ActivityGrace {
				continue
			}
			s.logger.Warn("no inbound traffic within grace period, recycling connection",
				"device_id", s.cfg.DeviceID,
				"grace", s.cfg.ActivityGrace,
			)
			s.setStatus(StatusDegraded)
			s.disconnect()
			return true
		}
	}
}

// inbound is the paho message callback: panic recovery, activity tracking,
// and handler dispatch.
func (s *Session) inbound(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message handler panic recovered",
				"device_id", s.cfg.DeviceID,
				"topic", msg.Topic(),
				"panic", r,
			)
		}
	}()

	s.touch()

	if s.handler == nil {
		return
	}
	if err := s.handler(msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("message handler returned error",
			"device_id", s.cfg.DeviceID,
			"topic", msg.Topic(),
			"error", err,
		)
	}
}

// disconnect tears down the current transport, if any.
func (s *Session) disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(disconnectQuiesce)
	}
}

// sleep waits for d, returning false if shutdown arrives first.
func (s *Session) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	callback := s.onStatus
	s.mu.Unlock()

	if callback != nil {
		callback(status)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastInbound = time.Now()
	s.mu.Unlock()
}

func (s *Session) activity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInbound
}

// clientID builds a broker client identifier unique per session instance.
// The random suffix prevents takeover when a stale session lingers broker-side.
func clientID(deviceID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", clientIDPrefix, deviceID, suffix)
}

// classifyConnectError maps broker connect failures onto the session error
// taxonomy. Auth rejections are surfaced distinctly because retrying them
// without a refreshed token cannot succeed.
func classifyConnectError(err error) error {
	if errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrConnectTimeout) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bad user name or password"),
		strings.Contains(msg, "not authorized"),
		strings.Contains(msg, "not authorised"):
		return fmt.Errorf("%w: %w", ErrAuthRejected, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
}
