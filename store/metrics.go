package store

import "sync/atomic"

// Metrics counts Submit outcomes so tests and the report loop can assert on
// rejection rates without parsing log output.
type Metrics struct {
	accepted     atomic.Int64
	rejected     atomic.Int64
	unregistered atomic.Int64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) Accepted() int64     { return m.accepted.Load() }
func (m *Metrics) Rejected() int64     { return m.rejected.Load() }
func (m *Metrics) Unregistered() int64 { return m.unregistered.Load() }
