package store

import (
	"errors"
	"sync"
	"testing"

	"ssiflow/internal/model"
)

func newMarketStore() *Store[model.CurrentMarket] {
	return New(model.ChannelMarket, model.CurrentMarket.Supersedes, nil)
}

func TestRegisterReservedKey(t *testing.T) {
	s := newMarketStore()
	if err := s.Register("ALL"); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("Register(ALL) = %v, want ErrReservedKey", err)
	}
	if s.Registered("ALL") {
		t.Fatal("reserved key must not be registered")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	s := newMarketStore()
	if err := s.Register("ABC"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Submit(model.CurrentMarket{Symbol: "ABC", TotalVolume: 10, CurrentVolume: 1})
	if err := s.Register("ABC"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	// re-registering must not wipe existing state
	if got := s.Current("ABC").TotalVolume; got != 10 {
		t.Fatalf("TotalVolume after re-register = %v, want 10", got)
	}
	if len(s.History("ABC")) != 1 {
		t.Fatal("history lost on re-register")
	}
}

func TestCurrentZeroValued(t *testing.T) {
	s := newMarketStore()
	if err := s.Register("ABC"); err != nil {
		t.Fatalf("register: %v", err)
	}
	cur := s.Current("ABC")
	if cur.TradingTime != "" || cur.TotalVolume != 0 {
		t.Fatalf("expected zero-valued snapshot, got %+v", cur)
	}
	// unknown key is also zero-valued, not an error
	if got := s.Current("XYZ"); got.Symbol != "" {
		t.Fatalf("expected zero-valued snapshot for unknown key, got %+v", got)
	}
	if h := s.History("XYZ"); len(h) != 0 {
		t.Fatalf("expected empty history for unknown key, got %d entries", len(h))
	}
}

// Replay scenario from the acceptance policy: volumes 100, 100, 150 yield
// accept, reject, accept.
func TestSubmitMonotonicity(t *testing.T) {
	s := newMarketStore()
	if err := s.Register("ABC"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if r := s.Submit(model.CurrentMarket{Symbol: "ABC", TotalVolume: 100, CurrentVolume: 10}); r != Accepted {
		t.Fatalf("first submit = %v, want Accepted", r)
	}
	if r := s.Submit(model.CurrentMarket{Symbol: "ABC", TotalVolume: 100, CurrentVolume: 10}); r != Rejected {
		t.Fatalf("duplicate submit = %v, want Rejected", r)
	}
	if r := s.Submit(model.CurrentMarket{Symbol: "ABC", TotalVolume: 150, CurrentVolume: 5}); r != Accepted {
		t.Fatalf("third submit = %v, want Accepted", r)
	}

	h := s.History("ABC")
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].TotalVolume != 100 || h[1].TotalVolume != 150 {
		t.Fatalf("history out of acceptance order: %+v", h)
	}
	if got := s.Current("ABC").TotalVolume; got != 150 {
		t.Fatalf("current TotalVolume = %v, want 150", got)
	}

	m := s.Metrics()
	if m.Accepted() != 2 || m.Rejected() != 1 {
		t.Fatalf("metrics accepted=%d rejected=%d, want 2/1", m.Accepted(), m.Rejected())
	}
}

func TestSubmitStaleLeavesStateUntouched(t *testing.T) {
	s := newMarketStore()
	s.Register("ABC")
	s.Submit(model.CurrentMarket{Symbol: "ABC", TradingTime: "09:00:00", TotalVolume: 200, CurrentVolume: 1})

	// late out-of-order event with lower volume
	if r := s.Submit(model.CurrentMarket{Symbol: "ABC", TradingTime: "08:59:00", TotalVolume: 150, CurrentVolume: 1}); r != Rejected {
		t.Fatalf("stale submit = %v, want Rejected", r)
	}
	if got := s.Current("ABC").TradingTime; got != "09:00:00" {
		t.Fatalf("current mutated by rejected event: %v", got)
	}
	if len(s.History("ABC")) != 1 {
		t.Fatal("history mutated by rejected event")
	}
}

func TestSubmitUnregisteredKey(t *testing.T) {
	s := newMarketStore()
	if r := s.Submit(model.CurrentMarket{Symbol: "GONE", TotalVolume: 1, CurrentVolume: 1}); r != Unregistered {
		t.Fatalf("submit = %v, want Unregistered", r)
	}
	if s.Metrics().Unregistered() != 1 {
		t.Fatal("unregistered counter not incremented")
	}
}

func TestHistoryLengthMatchesAccepted(t *testing.T) {
	s := New(model.ChannelBar, model.CurrentBar.Supersedes, nil)
	s.Register("X26")
	accepted := 0
	for _, vol := range []float64{5, 5, 10, 7, 11, 11, 12} {
		if s.Submit(model.CurrentBar{Symbol: "X26", Volume: vol}) == Accepted {
			accepted++
		}
	}
	if len(s.History("X26")) != accepted {
		t.Fatalf("history length = %d, accepted = %d", len(s.History("X26")), accepted)
	}
	if int(s.Metrics().Accepted()) != accepted {
		t.Fatalf("metrics accepted = %d, want %d", s.Metrics().Accepted(), accepted)
	}
}

// Readers must always observe fully constructed snapshots while the delivery
// goroutine keeps submitting.
func TestConcurrentSubmitAndRead(t *testing.T) {
	s := New(model.ChannelIndex, model.CurrentIndex.Supersedes, nil)
	s.Register("VN30")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			s.Submit(model.CurrentIndex{Name: "VN30", TotalVolume: float64(i), CurrentValue: float64(i) * 2})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			cur := s.Current("VN30")
			if cur.CurrentValue != cur.TotalVolume*2 {
				t.Errorf("torn read: %+v", cur)
				return
			}
			_ = s.History("VN30")
		}
	}()
	wg.Wait()

	h := s.History("VN30")
	for i := 1; i < len(h); i++ {
		if h[i].TotalVolume <= h[i-1].TotalVolume {
			t.Fatalf("history not ordered by acceptance at %d: %v <= %v", i, h[i].TotalVolume, h[i-1].TotalVolume)
		}
	}
}
