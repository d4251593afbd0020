package report

import (
	"context"
	"errors"
	"time"

	"sewstat/logger"
)

// Snapshot is the latest state of one live view
type Snapshot struct {
	Kind       string     `json:"kind"`
	Request    Request    `json:"request"`
	View       *ViewModel `json:"view,omitempty"`
	Loading    bool       `json:"loading"`
	Err        string     `json:"error,omitempty"`
	Generation uint64     `json:"generation"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// liveView holds the current snapshot of one kind plus the cancel func of
// the request in flight
type liveView struct {
	snap   Snapshot
	cancel context.CancelFunc
}

// Refresh rebuilds the live view of req.Kind. Only the newest request for a
// kind may publish: an older request still in flight is cancelled, and a
// result that arrives after a newer request started is discarded with
// ErrStaleResult.
func (s *Service) Refresh(ctx context.Context, req Request) (Snapshot, error) {
	if _, err := KindByName(req.Kind); err != nil {
		return Snapshot{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := s.begin(req, cancel)

	vm, err := s.Rebuild(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	lv := s.live[req.Kind]
	if lv.snap.Generation != gen {
		logger.Debug("discarding superseded report", "kind", req.Kind, "generation", gen)
		return lv.snap, ErrStaleResult
	}

	lv.cancel = nil
	lv.snap.Loading = false
	lv.snap.UpdatedAt = s.now()
	if err != nil {
		// A failed refresh keeps the previous view visible
		lv.snap.Err = err.Error()
		return lv.snap, err
	}
	lv.snap.View = vm
	lv.snap.Err = ""
	return lv.snap, nil
}

// RefreshAsync starts a Refresh that outlives the caller's context and
// returns the loading snapshot immediately
func (s *Service) RefreshAsync(ctx context.Context, req Request) (Snapshot, error) {
	if _, err := KindByName(req.Kind); err != nil {
		return Snapshot{}, err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.Refresh(bg, req); err != nil && !errors.Is(err, ErrStaleResult) && !errors.Is(err, context.Canceled) {
			logger.Warn("live report refresh failed", "kind", req.Kind, "error", err)
		}
	}()
	// Publish the request right away so Current reflects the filter change
	s.mu.Lock()
	defer s.mu.Unlock()
	if lv, ok := s.live[req.Kind]; ok {
		snap := lv.snap
		snap.Request = req
		snap.Loading = true
		return snap, nil
	}
	return Snapshot{Kind: req.Kind, Request: req, Loading: true}, nil
}

// Current returns the latest snapshot of kind
func (s *Service) Current(kind string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lv, ok := s.live[kind]
	if !ok {
		return Snapshot{}, false
	}
	return lv.snap, true
}

func (s *Service) begin(req Request, cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	lv, ok := s.live[req.Kind]
	if !ok {
		lv = &liveView{snap: Snapshot{Kind: req.Kind}}
		s.live[req.Kind] = lv
	}
	if lv.cancel != nil {
		lv.cancel()
	}
	lv.cancel = cancel
	lv.snap.Generation++
	lv.snap.Request = req
	lv.snap.Loading = true
	return lv.snap.Generation
}
