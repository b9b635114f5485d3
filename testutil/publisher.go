package testutil

import (
	"context"
	"sync"

	"github.com/muntasirraihan/orleans/stats"
)

// CapturePublisher records statistics batches in memory.
type CapturePublisher struct {
	// InitErr / InsertErr simulate store failures.
	InitErr   error
	InsertErr error

	mu      sync.Mutex
	inited  bool
	batches [][]stats.Row
}

var _ stats.Publisher = (*CapturePublisher)(nil)

// InitTable records initialization.
func (p *CapturePublisher) InitTable(context.Context) error {
	if p.InitErr != nil {
		return p.InitErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inited = true
	return nil
}

// BulkInsert records one batch.
func (p *CapturePublisher) BulkInsert(_ context.Context, rows []stats.Row) error {
	if p.InsertErr != nil {
		return p.InsertErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]stats.Row(nil), rows...))
	return nil
}

// Inited reports whether InitTable ran.
func (p *CapturePublisher) Inited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inited
}

// Batches returns all recorded batches.
func (p *CapturePublisher) Batches() [][]stats.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]stats.Row, len(p.batches))
	copy(out, p.batches)
	return out
}

// Rows returns all recorded rows flattened.
func (p *CapturePublisher) Rows() []stats.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []stats.Row
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}
