package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"ssiflow/config"
	"ssiflow/internal/model"
	"ssiflow/logger"
)

// TradingFailedError is the terminal condition of one account's order
// notification stream.
type TradingFailedError struct {
	AccountID string
	Err       error
}

func (e *TradingFailedError) Error() string {
	return fmt.Sprintf("trading stream %s failed: %v", e.AccountID, e.Err)
}

func (e *TradingFailedError) Unwrap() error { return e.Err }

// TradingStream subscribes one trading account to the order and account
// notification hub, resuming after the configured notify id. Notifications
// are appended in arrival order and the highest id seen is tracked so the
// owner can resubscribe from the right position. Failure is terminal for the
// same reason the data streams never reconnect: a new subscription needs the
// owner to supply the next notify id. Paper trading accounts have no
// notification hub, so Start on one is a warning no-op.
type TradingStream struct {
	cfg  config.TradingServiceConfig
	dial TradingDialer
	log  *logger.Log

	fatal chan error

	mu         sync.Mutex
	state      State
	conn       Conn
	ctx        context.Context
	closing    bool
	lastNotify int64
	events     []model.OrderNotification
	wg         sync.WaitGroup
}

func NewTradingStream(cfg config.TradingServiceConfig) *TradingStream {
	return &TradingStream{
		cfg:        cfg,
		dial:       dialTradingWebsocket,
		log:        logger.GetLogger(),
		fatal:      make(chan error, 1),
		lastNotify: int64(cfg.NotifyID),
	}
}

// AccountID returns the account this stream delivers notifications for.
func (t *TradingStream) AccountID() string { return t.cfg.AccountID }

// State returns the current lifecycle state.
func (t *TradingStream) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fatal delivers the terminal stream error to the owner. Buffered so the
// read loop never blocks on an absent supervisor.
func (t *TradingStream) Fatal() <-chan error { return t.fatal }

// LastNotifyID returns the highest notify id seen so far, starting from the
// configured resume position.
func (t *TradingStream) LastNotifyID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastNotify
}

// Notifications returns a copy of the notifications received so far, in
// arrival order.
func (t *TradingStream) Notifications() []model.OrderNotification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.OrderNotification, len(t.events))
	copy(out, t.events)
	return out
}

// Start subscribes to the notification hub. Calling Start while Active is a
// warning no-op; starting a paper trading session is inert because the demo
// gateway has no notification hub.
func (t *TradingStream) Start(ctx context.Context) error {
	t.mu.Lock()
	log := t.log.WithComponent("trading_stream").WithFields(logger.Fields{
		"account": t.cfg.AccountID,
	})
	switch t.state {
	case StateActive:
		t.mu.Unlock()
		log.Warn("trading stream is already started")
		return nil
	case StateFailed:
		t.mu.Unlock()
		return &TradingFailedError{AccountID: t.cfg.AccountID, Err: fmt.Errorf("stream is in failed state")}
	}
	if t.cfg.PaperTrading {
		t.mu.Unlock()
		log.Warn("paper trading is not supported for trading stream")
		return nil
	}

	conn, err := t.dial(ctx, t.cfg)
	if err != nil {
		t.state = StateFailed
		t.mu.Unlock()
		ferr := &TradingFailedError{AccountID: t.cfg.AccountID, Err: err}
		t.reportFatal(ferr)
		return ferr
	}

	sub := notifySubscription{
		Operation:    "subscribe",
		Account:      t.cfg.AccountID,
		LastNotifyID: strconv.FormatInt(t.lastNotify, 10),
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		t.state = StateFailed
		t.mu.Unlock()
		ferr := &TradingFailedError{AccountID: t.cfg.AccountID, Err: err}
		t.reportFatal(ferr)
		return ferr
	}

	t.conn = conn
	t.ctx = ctx
	t.state = StateActive
	t.closing = false
	t.mu.Unlock()

	log.WithFields(logger.Fields{"last_notify_id": sub.LastNotifyID}).Info("trading stream started")

	t.wg.Add(1)
	go t.readLoop()
	return nil
}

// Stop closes the connection and waits for the read loop to drain. A
// requested stop never counts as a failure; a stopped stream is Idle again.
func (t *TradingStream) Stop() {
	t.mu.Lock()
	t.closing = true
	if t.conn != nil {
		t.conn.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()

	t.mu.Lock()
	if t.state == StateActive {
		t.state = StateIdle
		t.conn = nil
	}
	t.mu.Unlock()

	t.log.WithComponent("trading_stream").WithFields(logger.Fields{
		"account": t.cfg.AccountID,
	}).Info("trading stream stopped")
}

func (t *TradingStream) stopRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing || (t.ctx != nil && t.ctx.Err() != nil)
}

func (t *TradingStream) readLoop() {
	defer t.wg.Done()
	log := t.log.WithComponent("trading_stream").WithFields(logger.Fields{
		"account": t.cfg.AccountID,
	})

	for {
		_, frame, err := t.conn.ReadMessage()
		if err != nil {
			if t.stopRequested() {
				log.Info("read loop stopped")
				return
			}
			t.fail(err)
			return
		}
		logger.IncrementStreamRead("notify:"+t.cfg.AccountID, len(frame))
		t.handleFrame(log, frame)
	}
}

// handleFrame records one notification. Malformed frames fail the message,
// not the stream.
func (t *TradingStream) handleFrame(log *logger.Entry, frame []byte) {
	var n model.OrderNotification
	if err := json.Unmarshal(frame, &n); err != nil {
		log.WithError(err).Warn("dropping malformed notification")
		return
	}

	t.mu.Lock()
	if n.NotifyID > t.lastNotify {
		t.lastNotify = n.NotifyID
	}
	t.events = append(t.events, n)
	t.mu.Unlock()

	log.WithFields(logger.Fields{
		"notify_id": n.NotifyID,
		"type":      n.Type,
	}).Info("order notification received")
}

func (t *TradingStream) fail(err error) {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return
	}
	t.state = StateFailed
	if t.conn != nil {
		t.conn.Close()
	}
	t.mu.Unlock()

	ferr := &TradingFailedError{AccountID: t.cfg.AccountID, Err: err}
	t.log.WithComponent("trading_stream").WithFields(logger.Fields{
		"account": t.cfg.AccountID,
	}).WithError(err).Error("trading stream failed")
	t.reportFatal(ferr)
}

func (t *TradingStream) reportFatal(err error) {
	select {
	case t.fatal <- err:
	default:
	}
}
