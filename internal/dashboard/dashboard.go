// Package dashboard holds the per-session, role-scoped complaint dashboards.
// A dashboard caches one record list from the complaint API and derives its
// table rows and map markers from that cache; filtering never fetches.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/mapview"
	"github.com/kentsikayet/portal/pkg/logger"
	"github.com/kentsikayet/portal/pkg/metrics"
)

var log = logger.For("dashboard")

var (
	ErrNotFound     = errors.New("complaint not in dashboard")
	ErrNotConfirmed = errors.New("delete not confirmed")
	ErrUnsupported  = errors.New("operation not available on this dashboard")
	// ErrSuperseded is returned by UpdateStatus when a later update for the
	// same complaint was issued before this one completed.
	ErrSuperseded = errors.New("status update superseded by a later one")
	// ErrSolutionLinked marks a Resolve that linked its solution but could not
	// mark the complaint resolved. The solution keeps referencing the photo.
	ErrSolutionLinked = errors.New("solution linked but complaint not updated")
)

// Variant selects which complaints a dashboard shows and how status edits
// are applied.
type Variant string

const (
	Citizen    Variant = "citizen"
	Admin      Variant = "admin"
	Department Variant = "department"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Citizen, Admin, Department:
		return v, nil
	}
	return "", fmt.Errorf("unknown dashboard %q", s)
}

func (v Variant) scope() api.Scope {
	switch v {
	case Citizen:
		return api.ScopeMine
	case Department:
		return api.ScopeDepartment
	}
	return api.ScopeAll
}

// remoteStatus reports whether status edits go through the API.
func (v Variant) remoteStatus() bool { return v == Department }

// Polls reports whether the variant refreshes on an interval.
func (v Variant) Polls() bool { return v == Department }

// Source is the part of the complaint API a dashboard uses.
type Source interface {
	Complaints(ctx context.Context, token string, scope api.Scope) ([]complaints.Record, error)
	CreateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error)
	UpdateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error)
	DeleteComplaint(ctx context.Context, token string, id int) error
	VerifyComplaint(ctx context.Context, token string, id int) (complaints.Record, error)
	AddSolution(ctx context.Context, token string, s api.Solution) (api.Solution, error)
	Count(ctx context.Context, token string, counter api.Counter) (int, error)
}

// View is a consistent snapshot of what a dashboard renders.
type View struct {
	Variant    Variant             `json:"variant"`
	Filter     string              `json:"filter"`
	Types      []string            `json:"types"`
	Metrics    complaints.Metrics  `json:"metrics"`
	Rows       []complaints.Record `json:"rows"`
	Markers    []mapview.Marker    `json:"markers"`
	Generation uint64              `json:"generation"`
	LoadedAt   time.Time           `json:"loadedAt"`
	Popup      *complaints.Record  `json:"popup,omitempty"`
}

// Dashboard is one role-scoped screen's state.
type Dashboard struct {
	variant Variant
	src     Source
	layer   *mapview.Layer

	mu         sync.Mutex
	records    []complaints.Record
	metrics    complaints.Metrics
	filter     string
	generation uint64
	loadedAt   time.Time
	loadSeq    uint64
	lastLoad   uint64
	seq        map[int]uint64
	nextSeq    uint64
	detached   bool
}

// New returns an empty dashboard; call Load to populate it.
func New(v Variant, src Source, layer *mapview.Layer) *Dashboard {
	if layer == nil {
		layer = mapview.NewLayer(0)
	}
	layer.OnRebuild(func() { metrics.MarkerRebuilds.WithLabelValues(string(v)).Inc() })
	return &Dashboard{variant: v, src: src, layer: layer, filter: complaints.FilterAll, seq: map[int]uint64{}}
}

func (d *Dashboard) Variant() Variant { return d.variant }

// Layer returns the dashboard's marker layer.
func (d *Dashboard) Layer() *mapview.Layer { return d.layer }

// Loaded reports whether a Load has ever succeeded.
func (d *Dashboard) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.loadedAt.IsZero()
}

// Load fetches metrics and records. A successful load replaces the cache
// wholesale, discarding local status edits; a failed one leaves it untouched.
func (d *Dashboard) Load(ctx context.Context, token string) error {
	return d.refresh(ctx, token, "load")
}

func (d *Dashboard) refresh(ctx context.Context, token, trigger string) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.DashboardRefreshes.WithLabelValues(string(d.variant), trigger, outcome).Inc()
	}()

	d.mu.Lock()
	d.loadSeq++
	n := d.loadSeq
	d.mu.Unlock()

	list, err := d.src.Complaints(ctx, token, d.variant.scope())
	if err != nil {
		return fmt.Errorf("load %s complaints: %w", d.variant, err)
	}
	m, err := d.fetchMetrics(ctx, token, list)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if n < d.lastLoad {
		log.Debugf("%s: dropping stale load %d (have %d)", d.variant, n, d.lastLoad)
		return nil
	}
	d.lastLoad = n
	d.records = append([]complaints.Record(nil), list...)
	d.metrics = m
	d.loadedAt = time.Now()
	d.generation++
	if d.detached {
		log.Debugf("%s: load landed after teardown", d.variant)
	}
	return nil
}

func (d *Dashboard) fetchMetrics(ctx context.Context, token string, list []complaints.Record) (complaints.Metrics, error) {
	if d.variant != Admin {
		return summarize(list), nil
	}
	var m complaints.Metrics
	for _, c := range []struct {
		counter api.Counter
		dst     *int
	}{
		{api.CountUsers, &m.TotalUsers},
		{api.CountComplaints, &m.TotalComplaints},
		{api.CountResolvedComplaints, &m.ResolvedComplaints},
		{api.CountPendingComplaints, &m.PendingComplaints},
	} {
		n, err := d.src.Count(ctx, token, c.counter)
		if err != nil {
			return m, fmt.Errorf("load metrics: %w", err)
		}
		*c.dst = n
	}
	return m, nil
}

func summarize(list []complaints.Record) complaints.Metrics {
	m := complaints.Metrics{TotalComplaints: len(list)}
	for _, r := range list {
		switch r.Status {
		case complaints.Resolved:
			m.ResolvedComplaints++
		case complaints.UnderReview:
			m.PendingComplaints++
		}
	}
	return m
}

// Filter selects the records of one type; "" or complaints.FilterAll clears
// the filter. It never fetches.
func (d *Dashboard) Filter(kind string) View {
	if kind == "" {
		kind = complaints.FilterAll
	}
	d.mu.Lock()
	if kind != d.filter {
		d.filter = kind
		d.generation++
	}
	d.mu.Unlock()
	return d.View()
}

// View returns the current snapshot, rebuilding the marker layer first if the
// filtered list changed since the last call.
func (d *Dashboard) View() View {
	d.mu.Lock()
	rows := append([]complaints.Record(nil), complaints.FilterByType(d.records, d.filter)...)
	v := View{
		Variant:    d.variant,
		Filter:     d.filter,
		Types:      complaints.Types(d.records),
		Metrics:    d.metrics,
		Rows:       rows,
		Generation: d.generation,
		LoadedAt:   d.loadedAt,
	}
	d.layer.Sync(d.generation, rows)
	d.mu.Unlock()

	v.Markers = d.layer.Markers()
	if r, ok := d.layer.Popup(); ok {
		v.Popup = &r
	}
	return v
}

// Record returns the cached record with id.
func (d *Dashboard) Record(id int) (complaints.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 {
		return complaints.Record{}, false
	}
	return d.records[i], true
}

// SetStatus changes a record's status in the local cache only. The edit is
// lost on the next successful Load.
func (d *Dashboard) SetStatus(id int, s complaints.Status) error {
	if d.variant.remoteStatus() {
		return ErrUnsupported
	}
	if !s.Valid() {
		return fmt.Errorf("invalid status %d", int(s))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	if d.records[i].Status != s {
		d.records[i].Status = s
		d.generation++
	}
	return nil
}

// UpdateStatus sends a status change to the API and, on success, replaces the
// cached record with the server's copy. Only the response to the most recently
// issued update for a record is applied.
func (d *Dashboard) UpdateStatus(ctx context.Context, token string, id int, s complaints.Status) (complaints.Record, error) {
	if !d.variant.remoteStatus() {
		return complaints.Record{}, ErrUnsupported
	}
	if !s.Valid() {
		return complaints.Record{}, fmt.Errorf("invalid status %d", int(s))
	}
	d.mu.Lock()
	i := d.indexOf(id)
	if i < 0 {
		d.mu.Unlock()
		return complaints.Record{}, ErrNotFound
	}
	want := d.records[i]
	want.Status = s
	d.nextSeq++
	n := d.nextSeq
	d.seq[id] = n
	d.mu.Unlock()

	echo, err := d.src.UpdateComplaint(ctx, token, want)
	if err != nil {
		return complaints.Record{}, fmt.Errorf("update complaint %d: %w", id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq[id] != n {
		log.Debugf("%s: dropping superseded update %d for complaint %d", d.variant, n, id)
		return echo, ErrSuperseded
	}
	delete(d.seq, id)
	d.replace(echo)
	return echo, nil
}

// Delete removes a complaint through the API once the user has confirmed.
// The cache only changes when the request succeeds.
func (d *Dashboard) Delete(ctx context.Context, token string, id int, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := d.src.DeleteComplaint(ctx, token, id); err != nil {
		return fmt.Errorf("delete complaint %d: %w", id, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seq, id)
	if i := d.indexOf(id); i >= 0 {
		d.records = append(d.records[:i:i], d.records[i+1:]...)
		d.generation++
	}
	return nil
}

// Save validates a draft and creates or updates the complaint. Validation
// failures return complaints.FieldErrors without issuing any request.
func (d *Dashboard) Save(ctx context.Context, token string, draft complaints.Draft) (complaints.Record, error) {
	if err := draft.Validate(); err != nil {
		return complaints.Record{}, err
	}
	if draft.ID == 0 {
		created, err := d.src.CreateComplaint(ctx, token, draft.Apply(complaints.Record{Status: complaints.UnderReview}))
		if err != nil {
			return complaints.Record{}, fmt.Errorf("create complaint: %w", err)
		}
		d.mu.Lock()
		d.records = append(d.records, created)
		d.generation++
		d.mu.Unlock()
		return created, nil
	}

	current, ok := d.Record(draft.ID)
	if !ok {
		return complaints.Record{}, ErrNotFound
	}
	updated, err := d.src.UpdateComplaint(ctx, token, draft.Apply(current))
	if err != nil {
		return complaints.Record{}, fmt.Errorf("update complaint %d: %w", draft.ID, err)
	}
	d.mu.Lock()
	d.replace(updated)
	d.mu.Unlock()
	return updated, nil
}

// Verify adds the caller's confirmation to a complaint.
func (d *Dashboard) Verify(ctx context.Context, token string, id int) (complaints.Record, error) {
	r, err := d.src.VerifyComplaint(ctx, token, id)
	if err != nil {
		return complaints.Record{}, fmt.Errorf("verify complaint %d: %w", id, err)
	}
	d.mu.Lock()
	d.replace(r)
	d.mu.Unlock()
	return r, nil
}

// Resolve links a solution to a complaint and marks it resolved, storing
// photoURL as the complaint's photo.
func (d *Dashboard) Resolve(ctx context.Context, token string, id int, note, photoURL string) (complaints.Record, error) {
	current, ok := d.Record(id)
	if !ok {
		return complaints.Record{}, ErrNotFound
	}
	if _, err := d.src.AddSolution(ctx, token, api.Solution{ComplaintID: id, Description: note, PhotoURL: photoURL}); err != nil {
		return complaints.Record{}, fmt.Errorf("link solution to complaint %d: %w", id, err)
	}
	current.Status = complaints.Resolved
	if photoURL != "" {
		current.PhotoURL = photoURL
	}
	updated, err := d.src.UpdateComplaint(ctx, token, current)
	if err != nil {
		return complaints.Record{}, fmt.Errorf("%w: update complaint %d: %w", ErrSolutionLinked, id, err)
	}
	d.mu.Lock()
	d.replace(updated)
	d.mu.Unlock()
	return updated, nil
}

// detach marks the dashboard as torn down. Responses still in flight may land
// on it afterwards; nothing reads it again.
func (d *Dashboard) detach() {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()
	d.layer.Close()
}

// replace swaps the cached record with r.ID for r. Records no longer cached
// are not re-added. Callers hold d.mu.
func (d *Dashboard) replace(r complaints.Record) {
	if i := d.indexOf(r.ID); i >= 0 {
		d.records[i] = r
		d.generation++
	}
}

func (d *Dashboard) indexOf(id int) int {
	for i := range d.records {
		if d.records[i].ID == id {
			return i
		}
	}
	return -1
}
