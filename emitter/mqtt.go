// Package emitter publishes session score updates to an MQTT broker
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/swdee/go-dartscore"
)

// ErrNotConnected is returned when publishing before Connect succeeds or
// while the broker connection is lost
var ErrNotConnected = errors.New("mqtt not connected")

// queueSize is the number of updates buffered for the publishing goroutine
const queueSize = 32

// Message is the JSON payload published for each update
type Message struct {
	SessionID string        `json:"session_id"`
	Time      time.Time     `json:"time"`
	State     string        `json:"state"`
	Text      string        `json:"text"`
	Finalized bool          `json:"finalized"`
	Labels    []string      `json:"labels,omitempty"`
	Darts     []DartMessage `json:"darts,omitempty"`
	Total     int           `json:"total"`
	Bust      bool          `json:"bust"`
	Completed bool          `json:"completed"`
	Remaining int           `json:"remaining"`
}

// DartMessage describes one scored dart
type DartMessage struct {
	Label      string  `json:"label"`
	Value      int     `json:"value"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// NewMessage converts a session update into its published form
func NewMessage(u dartscore.Update) Message {

	m := Message{
		SessionID: u.SessionID,
		Time:      u.Time,
		State:     u.State.String(),
		Text:      u.Text,
		Finalized: u.Finalized,
		Labels:    u.Labels,
		Total:     u.Total,
		Bust:      u.Bust,
		Completed: u.Completed,
		Remaining: u.Remaining,
	}

	for _, d := range u.Darts {
		m.Darts = append(m.Darts, DartMessage{
			Label:      d.Label,
			Value:      d.Value,
			X:          d.Board.X,
			Y:          d.Board.Y,
			Confidence: d.Confidence,
		})
	}

	return m
}

// Topic returns the sub topic an update is published under, throws for
// finalized throws and status for everything else
func Topic(base string, u dartscore.Update) string {
	if u.Finalized {
		return base + "/throws"
	}
	return base + "/status"
}

// MQTTEmitter publishes session updates to an MQTT broker.  It implements
// dartscore.Publisher, updates are queued and sent by a single goroutine so
// a slow broker never holds up frame processing.
type MQTTEmitter struct {
	cfg    dartscore.MQTTConfig
	log    *slog.Logger
	Client mqtt.Client

	queue   chan dartscore.Update
	done    chan struct{}
	dropped atomic.Uint64

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
	closed    bool
	// lastText suppresses republishing identical status updates
	lastText string
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg dartscore.MQTTConfig, log *slog.Logger) *MQTTEmitter {

	if log == nil {
		log = slog.Default()
	}

	e := &MQTTEmitter{
		cfg:       cfg,
		log:       log,
		queue:     make(chan dartscore.Update, queueSize),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}

	go e.run()

	return e
}

// run sends queued updates until Close
func (e *MQTTEmitter) run() {
	defer close(e.done)

	for u := range e.queue {
		if err := e.Send(u); err != nil {
			e.log.Debug("mqtt publish failed", "session", u.SessionID, "error", err)
		}
	}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {

	if e.cfg.Broker == "" {
		return fmt.Errorf("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.log.Info("mqtt connection established", "broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn("mqtt connection lost, will auto-reconnect", "error", err,
			"broker", e.cfg.Broker)
	}

	e.Client = mqtt.NewClient(opts)

	e.log.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.Client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)

	return nil
}

// Publish queues the update for sending without blocking.  Updates are
// dropped and counted when the queue is full or the emitter is closed.
// Send errors are logged and counted as the session gives publishers no way
// to report them.
func (e *MQTTEmitter) Publish(u dartscore.Update) {

	e.mu.RLock()
	if !e.closed {
		select {
		case e.queue <- u:
			e.mu.RUnlock()
			return
		default:
		}
	}
	e.mu.RUnlock()

	n := e.dropped.Add(1)
	e.log.Debug("mqtt queue full, dropping update", "session", u.SessionID,
		"dropped", n)
}

// Send publishes the update and returns any error.  Status updates whose
// text has not changed since the last one are skipped.
func (e *MQTTEmitter) Send(u dartscore.Update) error {

	if !u.Finalized && e.sameStatus(u.Text) {
		return nil
	}

	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	topic := Topic(e.cfg.Topic, u)

	payload, err := json.Marshal(NewMessage(u))

	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	// throws are retained so late subscribers see the last score
	token := e.Client.Publish(topic, e.cfg.QoS, e.cfg.Retain || u.Finalized, payload)

	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}

	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.lastText = u.Text
	e.mu.Unlock()

	e.log.Debug("update published", "topic", topic, "qos", e.cfg.QoS, "size", len(payload))

	return nil
}

// Close stops accepting updates and waits for the queued ones to be sent
func (e *MQTTEmitter) Close() {

	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	<-e.done
}

// Disconnect sends any queued updates then closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {

	e.Close()

	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		e.log.Info("mqtt disconnected")
	}

	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	// Dropped counts updates discarded because the queue was full
	Dropped uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
		Dropped:   e.dropped.Load(),
	}
}

func (e *MQTTEmitter) sameStatus(text string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.published) > 0 && text == e.lastText
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
