package channel

import (
	"context"
	"sync"

	"ssiflow/internal/model"
	"ssiflow/logger"
)

type Stats struct {
	RawSent    int64
	RawDropped int64
}

// Channels carries raw stream frames from the transport read loop to the
// decode worker of one adapter. Send never blocks the delivery goroutine: a
// full buffer drops the frame and counts it.
type Channels struct {
	Raw chan model.RawStreamMessage

	stats      Stats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw: make(chan model.RawStreamMessage, rawBufferSize),
		log: log,
	}

	log.WithComponent("stream_channels").WithFields(logger.Fields{
		"raw_buffer_size": rawBufferSize,
	}).Info("stream channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Raw)
	c.log.WithComponent("stream_channels").Info("stream channels closed")
}

func (c *Channels) incrementRawSent() {
	c.statsMutex.Lock()
	c.stats.RawSent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementRawDropped() {
	c.statsMutex.Lock()
	c.stats.RawDropped++
	c.statsMutex.Unlock()
}

// SendRaw enqueues one frame without ever blocking the delivery goroutine.
// A cancelled context refuses the frame even when buffer space remains; a
// full buffer drops the frame and counts it.
func (c *Channels) SendRaw(ctx context.Context, msg model.RawStreamMessage) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case c.Raw <- msg:
		c.incrementRawSent()
		return true
	default:
		c.incrementRawDropped()
		return false
	}
}

func (c *Channels) GetStats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
