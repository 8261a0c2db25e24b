package app

import (
	"sync"

	"github.com/jwulff/evening/internal/waveform"
)

// previewSet tracks every preview built for the model, including ones whose
// attach result has not reached Update yet, so Close can release them all.
type previewSet struct {
	mu     sync.Mutex
	closed bool
	live   map[*waveform.Preview]struct{}
}

func newPreviewSet() *previewSet {
	return &previewSet{live: make(map[*waveform.Preview]struct{})}
}

// add registers p. It reports false once the set is closed; the caller then
// owns p and must release it.
func (s *previewSet) add(p *waveform.Preview) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.live[p] = struct{}{}
	return true
}

// release forgets p and releases it.
func (s *previewSet) release(p *waveform.Preview) {
	if p == nil {
		return
	}
	s.mu.Lock()
	delete(s.live, p)
	s.mu.Unlock()
	p.Release()
}

// close releases everything tracked and refuses later additions.
func (s *previewSet) close() {
	s.mu.Lock()
	s.closed = true
	live := s.live
	s.live = make(map[*waveform.Preview]struct{})
	s.mu.Unlock()
	for p := range live {
		p.Release()
	}
}
