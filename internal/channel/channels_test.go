package channel

import (
	"context"
	"testing"

	"ssiflow/internal/model"
)

func TestSendRaw(t *testing.T) {
	c := NewChannels(1)
	defer c.Close()

	msg := model.RawStreamMessage{Channel: model.ChannelMarket, Content: []byte(`{}`)}
	if !c.SendRaw(context.Background(), msg) {
		t.Fatal("send into empty buffer should succeed")
	}
	// buffer full: drop, do not block
	if c.SendRaw(context.Background(), msg) {
		t.Fatal("send into full buffer should drop")
	}

	stats := c.GetStats()
	if stats.RawSent != 1 || stats.RawDropped != 1 {
		t.Fatalf("stats = %+v, want sent=1 dropped=1", stats)
	}
}

func TestSendRawCancelled(t *testing.T) {
	c := NewChannels(1)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// cancellation wins even though the buffer has room
	if c.SendRaw(ctx, model.RawStreamMessage{Channel: model.ChannelBar}) {
		t.Fatal("send with cancelled context should fail")
	}
	if got := len(c.Raw); got != 0 {
		t.Fatalf("buffered frames = %d, cancelled send must not enqueue", got)
	}
}
