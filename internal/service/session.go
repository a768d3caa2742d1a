package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/wfs"
)

// SessionService runs paged WFS loads in the background. Each session owns
// its context; cancelling a session or starting a new one for the same
// layer abandons the old load and its result is never published.
type SessionService struct {
	loader  *wfs.Loader
	bus     *EventBus
	metrics *Metrics
	log     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	hooks    []func(Session)
	closed   bool
	wg       sync.WaitGroup
}

type sessionEntry struct {
	session Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSessionService creates a session service. metrics and bus may be nil.
func NewSessionService(loader *wfs.Loader, bus *EventBus, metrics *Metrics, log *slog.Logger) *SessionService {
	return &SessionService{
		loader:   loader,
		bus:      bus,
		metrics:  metrics,
		log:      logger.Or(log),
		sessions: make(map[string]*sessionEntry),
	}
}

// OnFinish registers fn to run once per session that reaches ready or
// failed. Abandoned sessions never reach fn.
func (s *SessionService) OnFinish(fn func(Session)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Start begins loading q for layerID. Any earlier session for the same
// layer is cancelled and forgotten.
func (s *SessionService) Start(layerID string, q wfs.Query) (Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Session{}, ErrClosed
	}

	for id, e := range s.sessions {
		if e.session.LayerID == layerID {
			e.cancel()
			delete(s.sessions, id)
			s.log.Debug("replaced session", "layer", layerID, "session", id)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &sessionEntry{
		session: Session{
			ID:        uuid.NewString(),
			LayerID:   layerID,
			TypeName:  q.TypeName,
			CQLFilter: q.CQLFilter,
			Status:    StatusLoading,
			Total:     wfs.TotalUnknown,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions[e.session.ID] = e
	s.wg.Add(1)
	sess := e.session
	s.mu.Unlock()

	s.log.Info("loading layer", "layer", layerID, "typeName", q.TypeName, "cql", q.CQLFilter, "session", sess.ID)
	s.bus.Publish(Event{Resource: ResourceSessions, Action: "started", ID: sess.ID})

	go s.run(ctx, sess.ID, layerID, q, e.done)
	return sess, nil
}

// Get returns a snapshot of a session.
func (s *SessionService) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// Latest returns the current session for a layer.
func (s *SessionService) Latest(layerID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.sessions {
		if e.session.LayerID == layerID {
			return e.session, true
		}
	}
	return Session{}, false
}

// List returns snapshots of all known sessions.
func (s *SessionService) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.session)
	}
	return out
}

// Done returns a channel closed when the session's goroutine exits, or nil
// for an unknown session.
func (s *SessionService) Done(id string) <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.sessions[id]; ok {
		return e.done
	}
	return nil
}

// Cancel abandons a session. Reports whether it existed.
func (s *SessionService) Cancel(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		e.cancel()
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("cancelled session", "session", id)
		s.bus.Publish(Event{Resource: ResourceSessions, Action: "cancelled", ID: id})
	}
	return ok
}

// Close cancels every session and waits for their goroutines to exit.
func (s *SessionService) Close() {
	s.mu.Lock()
	s.closed = true
	for _, e := range s.sessions {
		e.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *SessionService) run(ctx context.Context, id, layerID string, q wfs.Query, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	start := time.Now()
	res, err := s.loader.Load(ctx, q, func(p *wfs.Page, loaded int) {
		s.metrics.page(layerID, len(p.Features))
		s.update(id, func(sess *Session) {
			sess.Loaded = loaded
			sess.Pages++
			if sess.Total == wfs.TotalUnknown && p.TotalKnown() {
				sess.Total = p.Total
			}
		})
		s.bus.Publish(Event{Resource: ResourceSessions, Action: "progress", ID: id})
	})

	if ctx.Err() != nil {
		s.metrics.finished(layerID, "cancelled", time.Since(start))
		s.log.Debug("discarding abandoned session", "session", id, "layer", layerID)
		return
	}

	var (
		sess  Session
		hooks []func(Session)
		ok    bool
	)
	s.mu.Lock()
	if e, found := s.sessions[id]; found && !s.closed {
		e.session.FinishedAt = time.Now()
		if err != nil {
			e.session.Status = StatusFailed
			e.session.Error = err.Error()
		} else {
			e.session.Status = StatusReady
			e.session.Features = res.Collection.Features
			e.session.Loaded = len(res.Collection.Features)
			e.session.Pages = res.Pages
			e.session.Total = res.Total
		}
		sess, hooks, ok = e.session, slices.Clone(s.hooks), true
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.metrics.finished(layerID, sess.Status, time.Since(start))
	if err != nil {
		s.log.Error("layer load failed", "layer", layerID, "session", id, "err", err)
	} else {
		s.log.Info("layer loaded", "layer", layerID, "session", id,
			"features", sess.Loaded, "pages", sess.Pages, "took", time.Since(start))
	}
	s.bus.Publish(Event{Resource: ResourceSessions, Action: string(sess.Status), ID: id})

	for _, fn := range hooks {
		fn(sess)
	}
}

func (s *SessionService) update(id string, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		fn(&e.session)
	}
}

// Features returns the features of a ready session.
func (s *SessionService) Features(id string) (Session, error) {
	sess, ok := s.Get(id)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if sess.Status != StatusReady {
		return sess, fmt.Errorf("%w: %q is %s", ErrNotReady, id, sess.Status)
	}
	return sess, nil
}

// Preload starts a session for every WFS layer marked preload.
func (s *SessionService) Preload(layers []LayerConfig, query func(LayerConfig) wfs.Query) ([]Session, error) {
	var started []Session
	for _, l := range layers {
		if l.Kind != config.KindWFS || !l.Preload {
			continue
		}
		sess, err := s.Start(l.ID, query(l))
		if err != nil {
			return started, fmt.Errorf("preloading layer %q: %w", l.ID, err)
		}
		started = append(started, sess)
	}
	return started, nil
}
