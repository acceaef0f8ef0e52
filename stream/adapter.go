package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ssiflow/config"
	"ssiflow/internal/channel"
	"ssiflow/internal/model"
	"ssiflow/logger"
	"ssiflow/store"
)

// State is the lifecycle state of an adapter. Failed is terminal: the
// adapter never reconnects on its own because resubscription needs
// owner-level coordination (a fresh notify id on the new subscription).
type State int32

const (
	StateIdle State = iota
	StateActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FailedError is the fatal condition delivered to the adapter's owner when
// the upstream stream breaks.
type FailedError struct {
	Channel model.ChannelID
	Err     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("stream %s failed: %v", e.Channel, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Decoder maps one channel-specific wire payload to its event shape. A
// payload missing its key field must fail the message, never the stream.
type Decoder[T store.Observation] func(content []byte) (T, error)

// Adapter owns the lifecycle of one upstream subscription for one channel
// and a fixed set of business keys. Inbound frames flow from the websocket
// read loop through the raw channel into a decode worker that submits to the
// snapshot store. One Adapter instance per channel; instances are not shared
// across channels and need no cross-instance synchronization.
type Adapter[T store.Observation] struct {
	cfg      config.DataServiceConfig
	channel  model.ChannelID
	names    []string
	decode   Decoder[T]
	store    *store.Store[T]
	channels *channel.Channels
	dial     Dialer
	log      *logger.Log

	fatal chan error

	mu         sync.Mutex
	state      State
	conn       Conn
	ctx        context.Context
	closing    bool
	done       chan struct{}
	doneClosed bool
	wg         sync.WaitGroup
}

func newAdapter[T store.Observation](
	cfg config.DataServiceConfig,
	ch model.ChannelID,
	names []string,
	decode Decoder[T],
	st *store.Store[T],
	chans *channel.Channels,
) (*Adapter[T], error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		cleaned = append(cleaned, n)
	}
	for _, n := range cleaned {
		if err := st.Register(n); err != nil {
			return nil, fmt.Errorf("register %q on channel %s: %w", n, ch, err)
		}
	}
	return &Adapter[T]{
		cfg:      cfg,
		channel:  ch,
		names:    cleaned,
		decode:   decode,
		store:    st,
		channels: chans,
		dial:     dialWebsocket,
		log:      logger.GetLogger(),
		fatal:    make(chan error, 1),
	}, nil
}

// Channel returns the channel id this adapter subscribes to.
func (a *Adapter[T]) Channel() model.ChannelID { return a.channel }

// Store exposes the snapshot store the adapter feeds.
func (a *Adapter[T]) Store() *store.Store[T] { return a.store }

// State returns the current lifecycle state.
func (a *Adapter[T]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Fatal delivers the terminal stream error to the owner. The channel is
// buffered so the read loop never blocks on an absent supervisor.
func (a *Adapter[T]) Fatal() <-chan error { return a.fatal }

// Start establishes the subscription and begins decoding messages. Calling
// Start while Active is a warning no-op; starting with an empty key set is
// inert, not an error. Start blocks only for subscription establishment;
// delivery continues on the read loop goroutine.
func (a *Adapter[T]) Start(ctx context.Context) error {
	a.mu.Lock()
	log := a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
	})
	switch a.state {
	case StateActive:
		a.mu.Unlock()
		log.Warn("data stream is already started")
		return nil
	case StateFailed:
		a.mu.Unlock()
		return &FailedError{Channel: a.channel, Err: fmt.Errorf("adapter is in failed state")}
	}
	if len(a.names) == 0 {
		a.mu.Unlock()
		log.Warn("no symbol is provided, skip starting stream")
		return nil
	}

	conn, err := a.dial(ctx, a.cfg)
	if err != nil {
		a.state = StateFailed
		a.mu.Unlock()
		ferr := &FailedError{Channel: a.channel, Err: err}
		a.reportFatal(ferr)
		return ferr
	}

	if err := conn.WriteJSON(subscribeRequest(a.channel, a.names)); err != nil {
		conn.Close()
		a.state = StateFailed
		a.mu.Unlock()
		ferr := &FailedError{Channel: a.channel, Err: err}
		a.reportFatal(ferr)
		return ferr
	}

	a.conn = conn
	a.ctx = ctx
	a.state = StateActive
	a.closing = false
	a.done = make(chan struct{})
	a.doneClosed = false
	done := a.done
	a.mu.Unlock()

	log.WithFields(logger.Fields{"names": a.names}).Info("stream started")

	a.wg.Add(2)
	go a.readLoop()
	go a.worker(done)
	return nil
}

// Stop closes the connection and waits for the read loop and worker to
// drain. It needs no external context cancellation: the worker is released
// through the adapter's own done signal, and a requested stop never counts
// as a failure. Safe to call on an adapter that never started; a stopped
// adapter returns to Idle and may be started again.
func (a *Adapter[T]) Stop() {
	a.mu.Lock()
	a.closing = true
	if a.conn != nil {
		a.conn.Close()
	}
	a.closeDoneLocked()
	a.mu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	if a.state == StateActive {
		a.state = StateIdle
		a.conn = nil
	}
	a.mu.Unlock()

	a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
	}).Info("stream stopped")
}

// caller must hold a.mu
func (a *Adapter[T]) closeDoneLocked() {
	if a.done != nil && !a.doneClosed {
		close(a.done)
		a.doneClosed = true
	}
}

// stopRequested reports whether the owner asked the adapter to stop, either
// through Stop or by cancelling the start context.
func (a *Adapter[T]) stopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing || (a.ctx != nil && a.ctx.Err() != nil)
}

// readLoop pulls frames off the transport until the connection dies or the
// context is cancelled. Any transport error outside shutdown is fatal for
// the whole stream.
func (a *Adapter[T]) readLoop() {
	defer a.wg.Done()
	log := a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
		"worker":  "read_loop",
	})

	for {
		_, frame, err := a.conn.ReadMessage()
		if err != nil {
			if a.stopRequested() {
				log.Info("read loop stopped")
				return
			}
			a.fail(err)
			return
		}
		logger.IncrementStreamRead(string(a.channel), len(frame))
		a.HandleMessage(frame)
		if a.ctx.Err() != nil {
			return
		}
	}
}

// HandleMessage extracts the envelope and forwards the payload to the decode
// worker. Malformed frames and frames for other channels fail the message
// only.
func (a *Adapter[T]) HandleMessage(frame []byte) {
	log := a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
	})

	ch, content, err := model.ParseEnvelope(frame)
	if err != nil {
		log.WithError(err).Warn("dropping malformed frame")
		return
	}
	if ch != a.channel {
		log.WithFields(logger.Fields{"frame_channel": string(ch)}).Debug("ignoring frame for other channel")
		return
	}

	msg := model.RawStreamMessage{
		Channel:   ch,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
	if !a.channels.SendRaw(a.ctx, msg) && a.ctx.Err() == nil {
		log.Warn("raw channel is full, dropping frame")
	}
}

// worker drains the raw channel, decodes payloads and submits them to the
// snapshot store. Decode failures are per-message warnings. On the done
// signal the worker drains whatever is already buffered before exiting, so
// frames read before a failure still land in the store.
func (a *Adapter[T]) worker(done <-chan struct{}) {
	defer a.wg.Done()
	log := a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
		"worker":  "decoder",
	})

	for {
		select {
		case <-a.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-done:
			a.drainRaw(log)
			log.Info("worker stopped")
			return
		case msg, ok := <-a.channels.Raw:
			if !ok {
				log.Info("raw channel closed, worker stopping")
				return
			}
			a.submit(log, msg.Content)
		}
	}
}

func (a *Adapter[T]) drainRaw(log *logger.Entry) {
	for {
		select {
		case msg, ok := <-a.channels.Raw:
			if !ok {
				return
			}
			a.submit(log, msg.Content)
		default:
			return
		}
	}
}

func (a *Adapter[T]) submit(log *logger.Entry, content []byte) {
	event, err := a.decode(content)
	if err != nil {
		log.WithError(err).Warn("failed to decode payload")
		return
	}
	a.store.Submit(event)
}

func (a *Adapter[T]) fail(err error) {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return
	}
	a.state = StateFailed
	if a.conn != nil {
		a.conn.Close()
	}
	a.closeDoneLocked()
	a.mu.Unlock()

	ferr := &FailedError{Channel: a.channel, Err: err}
	a.log.WithComponent("stream_adapter").WithFields(logger.Fields{
		"channel": string(a.channel),
	}).WithError(err).Error("stream failed")
	a.reportFatal(ferr)
}

func (a *Adapter[T]) reportFatal(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}
