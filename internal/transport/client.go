// Package transport implements the per-session WebSocket client of spec.md
// §4.2: connect, reconnect with jittered exponential backoff, a bounded
// outbound send queue with the backpressure policy, and inbound frame
// decode/dispatch. It is the concrete collaborator that wires
// internal/dispatch's Triggers and internal/scheduler's Hooks to the wire.
package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/charging-platform/fleet-simulator/internal/dispatch"
	"github.com/charging-platform/fleet-simulator/internal/logger"
	"github.com/charging-platform/fleet-simulator/internal/metrics"
	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/orchestrate"
	"github.com/charging-platform/fleet-simulator/internal/pending"
	"github.com/charging-platform/fleet-simulator/internal/session"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
	"github.com/charging-platform/fleet-simulator/internal/validation"
)

// Config tunes the dialer and the send-queue policy, per spec.md §4.2.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	MaxMessageSize   int64

	QueueDepth     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffJitter  float64
}

// DefaultConfig mirrors spec.md §4.2's connect and backpressure policy.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		MaxMessageSize:   1024 * 1024,
		QueueDepth:       256,
		BackoffInitial:   1 * time.Second,
		BackoffMax:       30 * time.Second,
		BackoffJitter:    0.2,
	}
}

// criticalActions are never dropped from the outbound queue under
// backpressure, per spec.md §4.2.
var criticalActions = map[ocpp.Action]bool{
	ocpp.ActionBootNotification:   true,
	ocpp.ActionAuthorize:          true,
	ocpp.ActionStartTransaction:   true,
	ocpp.ActionStopTransaction:    true,
	ocpp.ActionStatusNotification: true,
}

// outboundFrame is one queued CALL awaiting serialisation onto the socket.
type outboundFrame struct {
	uniqueID string
	action   ocpp.Action
	payload  interface{}
}

// Client owns one session's WebSocket connection, its reconnect loop and
// its outbound send queue. One Client exists per Session for the lifetime
// of that session (spec.md §4.2, §5).
type Client struct {
	cfg       Config
	session   *session.Session
	mailbox   *session.Mailbox
	pending   *pending.Table
	validator *validation.Validator

	log    *logger.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	queue   []outboundFrame
	actions map[string]ocpp.Action
	notify  chan struct{}

	onHeartbeatAcked func()

	rng *rand.Rand
}

// New builds a Client bound to session s, its mailbox and its pending-call
// table. The caller starts it with Run.
func New(s *session.Session, mb *session.Mailbox, pendingTable *pending.Table, v *validation.Validator, log *logger.Logger, cfg Config) *Client {
	return &Client{
		cfg:       cfg,
		session:   s,
		mailbox:   mb,
		pending:   pendingTable,
		validator: v,
		log:       log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{"ocpp1.6"},
		},
		actions: make(map[string]ocpp.Action),
		notify:  make(chan struct{}, 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives connect/read/reconnect until ctx is cancelled, per spec.md
// §4.2's "retries are unbounded ... cease when the session is deleted or
// explicitly disconnected".
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		dialURL := strings.TrimSuffix(c.session.CSMSURL, "/") + "/" + c.session.ChargePointID
		conn, _, err := c.dialer.DialContext(ctx, dialURL, c.dialHeaders())
		if err != nil {
			c.log.Warnf("dial failed for %s: %v", c.session.ChargePointID, err)
			attempt++
			if !c.sleepBackoff(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		c.onConnected(conn)
		metrics.ActiveConnections.Inc()

		c.runConnection(ctx, conn)

		metrics.ActiveConnections.Dec()
		c.onDisconnected()

		if ctx.Err() != nil {
			return
		}
		attempt++
		if !c.sleepBackoff(ctx, attempt) {
			return
		}
	}
}

func (c *Client) dialHeaders() http.Header {
	h := http.Header{}
	if c.session.BearerToken != "" {
		h.Set("Authorization", "Bearer "+c.session.BearerToken)
	}
	return h
}

// sleepBackoff waits an exponentially growing, jittered interval before the
// next dial attempt, per spec.md §4.2 (1s doubling to a 30s cap, ±20%
// jitter). Returns false if ctx was cancelled while waiting.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) bool {
	d := c.cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > c.cfg.BackoffMax {
			d = c.cfg.BackoffMax
			break
		}
	}
	jitter := 1 + (c.rng.Float64()*2-1)*c.cfg.BackoffJitter
	wait := time.Duration(float64(d) * jitter)

	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) onConnected(conn *websocket.Conn) {
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.session.Log("INFO", "transport", "connected")
	c.mailbox.Post(func(s *session.Session) {
		s.OnSocketOpen()
	})
	c.Send(ocpp.ActionBootNotification, orchestrate.BootNotification(c.session))
}

func (c *Client) onDisconnected() {
	c.mu.Lock()
	c.conn = nil
	c.queue = nil
	for id := range c.actions {
		delete(c.actions, id)
	}
	c.mu.Unlock()

	dropped := c.pending.FailAll(pending.ErrTransportClosed)
	if dropped > 0 {
		c.log.Warnf("%s: %d pending calls cancelled on disconnect", c.session.ChargePointID, dropped)
	}
	c.session.Log("WARN", "transport", "disconnected")
	c.mailbox.Post(func(s *session.Session) {
		s.OnDisconnect()
	})
}

// runConnection owns one live socket: a reader goroutine and this
// goroutine draining the send queue, until either side fails.
func (c *Client) runConnection(ctx context.Context, conn *websocket.Conn) {
	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		c.readLoop(conn)
	}()

	for {
		select {
		case <-readErr:
			conn.Close()
			return
		case <-ctx.Done():
			conn.Close()
			<-readErr
			return
		case <-c.notify:
			c.drainQueue(conn)
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		metrics.MessagesReceived.WithLabelValues("ocpp1.6", "frame").Inc()
		c.handleInbound(data)
	}
}

func (c *Client) handleInbound(data []byte) {
	frame, decErr := ocpp.Decode(data)
	if decErr != nil {
		if frame != nil && frame.UniqueID != "" {
			c.sendCallError(frame.UniqueID, ocpp.ErrFormationViolation, decErr.Error())
		}
		c.log.Warnf("%s: %v", c.session.ChargePointID, decErr)
		return
	}
	c.log.Debugf("%s: inbound %s %s", c.session.ChargePointID, frame.Type, frame.Action)

	c.session.Recorder.Emit(tnr.Event{
		ID:            uuid.NewString(),
		Kind:          tnr.KindMessage,
		Timestamp:     time.Now().UTC(),
		SessionID:     c.session.ID,
		ChargePointID: c.session.ChargePointID,
		Direction:     tnr.DirectionIn,
		Action:        string(frame.Action),
		UniqueID:      frame.UniqueID,
		Payload:       frame.Payload,
	})

	switch frame.Type {
	case ocpp.MessageTypeCall:
		c.handleInboundCall(frame)
	case ocpp.MessageTypeCallResult:
		c.handleCallResult(frame)
	case ocpp.MessageTypeCallError:
		action := c.takeAction(frame.UniqueID)
		if action != "" {
			c.session.Log("WARN", "transport", fmt.Sprintf("%s rejected: %s %s", action, frame.ErrorCode, frame.ErrorDescription))
		}
		c.pending.Fail(frame.UniqueID, frame.ErrorCode, frame.ErrorDescription)
	}
}

func (c *Client) handleInboundCall(frame *ocpp.Frame) {
	c.mailbox.Post(func(s *session.Session) {
		resp, hErr := dispatch.Dispatch(s, c, c.validator, frame.Action, frame.Payload)
		if hErr != nil {
			c.sendCallError(frame.UniqueID, hErr.Code, hErr.Description)
			return
		}
		c.sendCallResult(frame.UniqueID, resp)
	})
}

// handleCallResult correlates a CALLRESULT to the action it answers and
// applies the resulting state transition on the session's mailbox.
func (c *Client) handleCallResult(frame *ocpp.Frame) {
	action := c.takeAction(frame.UniqueID)

	resp := ocpp.NewResponsePayload(action)
	if resp != nil {
		if err := ocpp.DecodePayload(frame.Payload, resp); err != nil {
			c.pending.Fail(frame.UniqueID, ocpp.ErrFormationViolation, err.Error())
			return
		}
	}
	c.pending.Resolve(frame.UniqueID, resp)

	switch action {
	case ocpp.ActionBootNotification:
		c.onBootResult(resp.(*ocpp.BootNotificationResponse))
	case ocpp.ActionAuthorize:
		c.onAuthorizeResult(resp.(*ocpp.AuthorizeResponse))
	case ocpp.ActionStartTransaction:
		c.onStartTransactionResult(resp.(*ocpp.StartTransactionResponse))
	case ocpp.ActionHeartbeat:
		c.heartbeatAcked()
	}
}

func (c *Client) onBootResult(resp *ocpp.BootNotificationResponse) {
	c.mailbox.Post(func(s *session.Session) {
		if resp.Status == ocpp.RegistrationAccepted {
			s.OnBootAccepted(resp.Interval)
			c.Send(ocpp.ActionStatusNotification, orchestrate.StatusNotification(s, time.Now().UTC()))
		} else {
			s.OnBootRejected()
		}
	})
}

func (c *Client) onAuthorizeResult(resp *ocpp.AuthorizeResponse) {
	c.mailbox.Post(func(s *session.Session) {
		if resp.IdTagInfo.Status != ocpp.AuthorizationAccepted {
			c.session.Log("WARN", "transport", "Authorize rejected: "+string(resp.IdTagInfo.Status))
			return
		}
		if s.State == session.StateAvailable {
			if err := s.OnPlugIn(); err != nil {
				return
			}
		}
		if !s.CanStartTransaction() {
			return
		}
		c.Send(ocpp.ActionStartTransaction, orchestrate.StartTransaction(s, time.Now().UTC()))
	})
}

func (c *Client) onStartTransactionResult(resp *ocpp.StartTransactionResponse) {
	c.mailbox.Post(func(s *session.Session) {
		if resp.IdTagInfo.Status != ocpp.AuthorizationAccepted {
			return
		}
		_ = s.OnTransactionStarted(resp.TransactionId, time.Now().UTC())
	})
}

// heartbeatAcked runs the hook registered with SetHeartbeatAckHook (the
// scheduler's HeartbeatAcked, wired in cmd/fleetsim) once a Heartbeat CALL
// completes, whether by CALLRESULT, CALLERROR, timeout or disconnect.
func (c *Client) heartbeatAcked() {
	c.mu.Lock()
	hook := c.onHeartbeatAcked
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// SetHeartbeatAckHook wires the scheduler's HeartbeatAcked as this
// client's Heartbeat completion callback, keeping both packages decoupled
// (the wiring happens once, in cmd/fleetsim).
func (c *Client) SetHeartbeatAckHook(hook func()) {
	c.mu.Lock()
	c.onHeartbeatAcked = hook
	c.mu.Unlock()
}

func (c *Client) sendCallResult(uniqueID string, payload interface{}) {
	data, err := ocpp.EncodeCallResult(uniqueID, payload)
	if err != nil {
		c.log.Errorf("%s: encode CALLRESULT: %v", c.session.ChargePointID, err)
		return
	}
	c.writeRaw(data)
}

func (c *Client) sendCallError(uniqueID, code, description string) {
	data, err := ocpp.EncodeCallError(uniqueID, code, description, nil)
	if err != nil {
		c.log.Errorf("%s: encode CALLERROR: %v", c.session.ChargePointID, err)
		return
	}
	c.writeRaw(data)
}

// Send queues an outbound CALL, registering it with the pending table and
// applying the backpressure policy if the queue is already full.
func (c *Client) Send(action ocpp.Action, payload interface{}) {
	uniqueID := c.pending.NextUniqueID()
	timeout := pending.DefaultTimeout
	if action == ocpp.ActionBootNotification {
		timeout = pending.BootTimeout
	}
	future, err := c.pending.Register(uniqueID, action, timeout)
	if err != nil {
		c.log.Warnf("%s: %v", c.session.ChargePointID, err)
		return
	}
	if action == ocpp.ActionHeartbeat {
		go func() {
			future.Wait()
			c.heartbeatAcked()
		}()
	}

	c.mu.Lock()
	c.actions[uniqueID] = action
	c.mu.Unlock()

	c.enqueue(outboundFrame{uniqueID: uniqueID, action: action, payload: payload})
}

func (c *Client) takeAction(uniqueID string) ocpp.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	action := c.actions[uniqueID]
	delete(c.actions, uniqueID)
	return action
}

// enqueue applies spec.md §4.2's backpressure policy: coalesce Heartbeat,
// drop the oldest non-critical (MeterValues) frame past QueueDepth, never
// drop Heartbeat or Boot/Authorize/Start/Stop/StatusNotification. When no
// droppable frame is queued, a new droppable frame is discarded and any
// other new frame is appended past QueueDepth.
func (c *Client) enqueue(frame outboundFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.action == ocpp.ActionHeartbeat {
		for i, f := range c.queue {
			if f.action == ocpp.ActionHeartbeat {
				delete(c.actions, f.uniqueID)
				c.queue[i] = frame
				c.signal()
				return
			}
		}
	}

	if len(c.queue) >= c.cfg.QueueDepth {
		if !c.dropOldestNonCriticalLocked() && !criticalActions[frame.action] && frame.action != ocpp.ActionHeartbeat {
			c.log.Warnf("%s: send queue full, dropping new %s", c.session.ChargePointID, frame.action)
			delete(c.actions, frame.uniqueID)
			return
		}
	}

	c.queue = append(c.queue, frame)
	c.signal()
}

func (c *Client) dropOldestNonCriticalLocked() bool {
	for i, f := range c.queue {
		if !criticalActions[f.action] && f.action != ocpp.ActionHeartbeat {
			c.session.Log("WARN", "transport", fmt.Sprintf("dropped queued %s under backpressure", f.action))
			delete(c.actions, f.uniqueID)
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Client) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// drainQueue flushes every currently queued frame to the live conn. Called
// only from runConnection's single goroutine, so it owns conn exclusively.
func (c *Client) drainQueue(conn *websocket.Conn) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		frame := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		data, err := ocpp.EncodeCall(frame.uniqueID, frame.action, frame.payload)
		if err != nil {
			c.log.Errorf("%s: encode %s: %v", c.session.ChargePointID, frame.action, err)
			continue
		}
		if err := c.writeConn(conn, data); err != nil {
			c.log.Warnf("%s: write %s: %v", c.session.ChargePointID, frame.action, err)
			return
		}
		c.log.Debugf("%s: outbound CALL %s %s", c.session.ChargePointID, frame.action, frame.uniqueID)
		metrics.MessagesSent.WithLabelValues(string(frame.action)).Inc()
		c.session.Recorder.Emit(tnr.Event{
			ID:            uuid.NewString(),
			Kind:          tnr.KindMessage,
			Timestamp:     time.Now().UTC(),
			SessionID:     c.session.ID,
			ChargePointID: c.session.ChargePointID,
			Direction:     tnr.DirectionOut,
			Action:        string(frame.action),
			UniqueID:      frame.uniqueID,
			Payload:       frame.payload,
		})
	}
}

func (c *Client) writeRaw(data []byte) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := c.writeConn(conn, data); err != nil {
		c.log.Warnf("%s: write: %v", c.session.ChargePointID, err)
	}
}

func (c *Client) writeConn(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the current connection, if any. The reconnect loop
// exits on its next check once the caller also cancels Run's context
// (registry deletion, per spec.md §4.11).
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// The following methods satisfy dispatch.Triggers and scheduler.Hooks,
// making Client the one concrete collaborator both packages are wired
// against at runtime.

func (c *Client) AuthorizeAndStart(idTag string, connectorID int) {
	c.mailbox.Post(func(s *session.Session) {
		s.IdTag = idTag
		c.Send(ocpp.ActionAuthorize, orchestrate.Authorize(s))
	})
}

// StopTransaction is called from dispatch.Handlers, which already run on
// the mailbox goroutine (see handleInboundCall) — posting again here would
// race the caller's own subsequent session mutations, so this runs
// synchronously against c.session instead.
func (c *Client) StopTransaction(reason ocpp.Reason) {
	c.performStopTransaction(c.session, reason)
}

// performStopTransaction sends StopTransaction.req with every MeterValue
// sample accumulated since the transaction started (spec.md §4.6) and
// clears the session's transaction state. Callers must already be running
// on s's mailbox goroutine.
func (c *Client) performStopTransaction(s *session.Session, reason ocpp.Reason) {
	if s.TransactionID == nil {
		return
	}
	c.Send(ocpp.ActionStopTransaction, orchestrate.StopTransaction(s, time.Now().UTC(), reason, s.TransactionSamples))
	_ = s.OnTransactionStopped()
}

func (c *Client) EnqueuePriority(action ocpp.Action) {
	switch action {
	case ocpp.ActionBootNotification:
		c.Send(ocpp.ActionBootNotification, orchestrate.BootNotification(c.session))
	case ocpp.ActionHeartbeat:
		c.SendHeartbeat(c.session)
	case ocpp.ActionMeterValues:
		c.SendMeterValues(c.session, false)
	case ocpp.ActionStatusNotification:
		c.SendStatusNotification(c.session)
	case ocpp.ActionFirmwareStatusNotification:
		c.Send(action, ocpp.FirmwareStatusNotificationRequest{Status: ocpp.FirmwareStatusDownloading})
	case ocpp.ActionDiagnosticsStatusNotification:
		c.Send(action, ocpp.DiagnosticsStatusNotificationRequest{Status: ocpp.DiagnosticsStatusUploading})
	}
}

// ArmReservationExpiry is a no-op here: expiry is swept by the scheduler's
// own tick against Session.ReservationExpiry, which OnReservationAccepted
// already set.
func (c *Client) ArmReservationExpiry(reservationID int, expiry time.Time) {}

func (c *Client) DisarmReservationExpiry() {}

func (c *Client) SendHeartbeat(s *session.Session) {
	c.Send(ocpp.ActionHeartbeat, orchestrate.Heartbeat())
}

func (c *Client) SendMeterValues(s *session.Session, aligned bool) {
	now := time.Now().UTC()
	var req ocpp.MeterValuesRequest
	if aligned {
		req = orchestrate.ClockAlignedMeterValues(s, now)
	} else {
		req = orchestrate.MeterValues(s, now)
	}
	if s.State == session.StateCharging {
		s.TransactionSamples = append(s.TransactionSamples, req.MeterValue...)
	}
	c.Send(ocpp.ActionMeterValues, req)
}

// SendStopTransaction lets the scheduler (already running on s's mailbox
// goroutine via PostAndWait) trigger a StopTransaction directly, e.g. when
// the physics tick crosses Session.TargetSoC (spec.md §4.8 step 8).
func (c *Client) SendStopTransaction(s *session.Session, reason ocpp.Reason) {
	c.performStopTransaction(s, reason)
}

func (c *Client) SendStatusNotification(s *session.Session) {
	c.Send(ocpp.ActionStatusNotification, orchestrate.StatusNotification(s, time.Now().UTC()))
}

func (c *Client) ExpireReservation(s *session.Session) {
	c.session.Log("INFO", "transport", "reservation expired")
}
