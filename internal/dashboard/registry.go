package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kentsikayet/portal/internal/mapview"
	"github.com/kentsikayet/portal/internal/sessions"
)

// Sessions resolves a session id to its live session.
type Sessions interface {
	Current(ctx context.Context, sid string) (*sessions.Session, error)
}

type key struct {
	sid     string
	variant Variant
}

// Registry owns the dashboards of every browser session and the polling
// jobs of the department dashboards.
type Registry struct {
	src       Source
	sessions  Sessions
	interval  time.Duration
	tolerance float64
	timeout   time.Duration
	cron      *cron.Cron

	mu      sync.Mutex
	boards  map[key]*Dashboard
	pollers map[key]cron.EntryID
}

// NewRegistry returns a registry whose department dashboards refresh every
// interval. Call Start to begin polling.
func NewRegistry(src Source, s Sessions, interval time.Duration, tolerance float64) *Registry {
	return &Registry{
		src:       src,
		sessions:  s,
		interval:  interval,
		tolerance: tolerance,
		timeout:   30 * time.Second,
		cron:      cron.New(),
		boards:    map[key]*Dashboard{},
		pollers:   map[key]cron.EntryID{},
	}
}

// Start starts the polling scheduler.
func (r *Registry) Start() { r.cron.Start() }

// Stop stops the scheduler and waits for running polls to finish.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
}

// Get returns the dashboard for (sid, v), creating it on first use. The
// boolean reports whether it was created, in which case it is still empty.
func (r *Registry) Get(sid string, v Variant) (*Dashboard, bool, error) {
	k := key{sid, v}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.boards[k]; ok {
		return d, false, nil
	}
	d := New(v, r.src, mapview.NewLayer(r.tolerance))
	if v.Polls() {
		id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.poll(k) })
		if err != nil {
			return nil, false, fmt.Errorf("schedule %s polling: %w", v, err)
		}
		r.pollers[k] = id
	}
	r.boards[k] = d
	return d, true, nil
}

// Drop tears down every dashboard of sid and cancels its polling.
func (r *Registry) Drop(sid string) {
	r.mu.Lock()
	var dropped []*Dashboard
	for k, d := range r.boards {
		if k.sid != sid {
			continue
		}
		if id, ok := r.pollers[k]; ok {
			r.cron.Remove(id)
			delete(r.pollers, k)
		}
		delete(r.boards, k)
		dropped = append(dropped, d)
	}
	r.mu.Unlock()
	for _, d := range dropped {
		d.detach()
	}
	if len(dropped) > 0 {
		log.Debugf("dropped %d dashboards of sid=%.8s", len(dropped), sid)
	}
}

// Len returns the number of live dashboards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

func (r *Registry) poll(k key) {
	r.mu.Lock()
	d, ok := r.boards[k]
	r.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	sess, err := r.sessions.Current(ctx, k.sid)
	if err != nil {
		log.Warnf("poll sid=%.8s: %v", k.sid, err)
		return
	}
	if sess == nil {
		r.Drop(k.sid)
		return
	}
	if err := d.refresh(ctx, sess.Token, "poll"); err != nil {
		log.Warnf("poll %s sid=%.8s: %v", k.variant, k.sid, err)
	}
}
