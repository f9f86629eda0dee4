// Package mapview keeps a map's marker overlay in lockstep with a dashboard's
// filtered complaint list and resolves marker clicks to complaint popups.
package mapview

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kentsikayet/portal/internal/complaints"
)

// DefaultHitTolerance is how far, in pixels, a click may land from a marker.
const DefaultHitTolerance = 12.0

// Marker is one rendered map overlay element. RecordID is a lookup key into
// the layer's record index, not an owned copy.
type Marker struct {
	RecordID int       `json:"recordId"`
	Position orb.Point `json:"position"`
	Color    string    `json:"color"`
	Icon     string    `json:"icon"`
}

var statusColors = map[complaints.Status]string{
	complaints.UnderReview: "#f0ad4e",
	complaints.Resolved:    "#5cb85c",
	complaints.Unresolved:  "#d9534f",
	complaints.Rejected:    "#777777",
}

var typeIcons = map[string]string{
	"Çöp":      "trash",
	"Elektrik": "bolt",
	"Su":       "droplet",
	"Yol":      "road",
	"Park":     "tree",
}

// StyleFor returns the marker colour and icon for a record.
func StyleFor(r complaints.Record) (color, icon string) {
	color, ok := statusColors[r.Status]
	if !ok {
		color = "#337ab7"
	}
	icon, ok = typeIcons[r.Type]
	if !ok {
		icon = "pin"
	}
	return color, icon
}

// Layer is the marker overlay of one map. Sync rebuilds it wholesale whenever
// the generation of the record list changes; there is no incremental diffing.
type Layer struct {
	mu         sync.RWMutex
	generation uint64
	synced     bool
	markers    []Marker
	index      map[int]complaints.Record
	selected   *complaints.Record
	tolerance  float64
	onRebuild  func()
}

// NewLayer returns an empty layer. tolerance <= 0 uses DefaultHitTolerance.
func NewLayer(tolerance float64) *Layer {
	if tolerance <= 0 {
		tolerance = DefaultHitTolerance
	}
	return &Layer{tolerance: tolerance, index: map[int]complaints.Record{}}
}

// OnRebuild registers a callback run after every full rebuild.
func (l *Layer) OnRebuild(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRebuild = f
}

// Sync rebuilds the layer from records when generation differs from the last
// synced one and reports whether a rebuild happened. Records without a
// location are skipped.
func (l *Layer) Sync(generation uint64, records []complaints.Record) bool {
	l.mu.Lock()
	if l.synced && l.generation == generation {
		l.mu.Unlock()
		return false
	}
	l.markers = l.markers[:0]
	l.index = make(map[int]complaints.Record, len(records))
	for _, r := range records {
		if !r.HasLocation() {
			continue
		}
		color, icon := StyleFor(r)
		l.markers = append(l.markers, Marker{
			RecordID: r.ID,
			Position: orb.Point{r.Location.Longitude, r.Location.Latitude},
			Color:    color,
			Icon:     icon,
		})
		l.index[r.ID] = r
	}
	if l.selected != nil {
		if r, ok := l.index[l.selected.ID]; ok {
			l.selected = &r
		} else {
			l.selected = nil
		}
	}
	l.generation = generation
	l.synced = true
	cb := l.onRebuild
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

// Markers returns a copy of the current markers.
func (l *Layer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Marker(nil), l.markers...)
}

// Record looks up the record behind a marker.
func (l *Layer) Record(id int) (complaints.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.index[id]
	return r, ok
}

// HitTest returns the marker nearest to pixel (x, y) within the tolerance.
func (l *Layer) HitTest(v Viewport, x, y float64) (Marker, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	best := -1
	bestDist := math.Inf(1)
	for i, m := range l.markers {
		p := v.Pixel(m.Position)
		d := math.Hypot(p.X()-x, p.Y()-y)
		if d <= l.tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Marker{}, false
	}
	return l.markers[best], true
}

// Click hit-tests (x, y) and, on a hit, makes the marker's record the popup,
// replacing any previous one. A miss leaves the popup unchanged.
func (l *Layer) Click(v Viewport, x, y float64) (complaints.Record, bool) {
	m, ok := l.HitTest(v, x, y)
	if !ok {
		return complaints.Record{}, false
	}
	return l.Open(m.RecordID)
}

// Open shows the popup for record id if it is on the layer.
func (l *Layer) Open(id int) (complaints.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.index[id]
	if !ok {
		return complaints.Record{}, false
	}
	l.selected = &r
	return r, true
}

// Popup returns the currently selected record, if any.
func (l *Layer) Popup() (complaints.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.selected == nil {
		return complaints.Record{}, false
	}
	return *l.selected, true
}

// Close clears the popup.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = nil
}

// FeatureCollection renders the markers as GeoJSON points for the browser map.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	return l.features(func(orb.Point) bool { return true })
}

// FeatureCollectionIn renders only the markers visible in v.
func (l *Layer) FeatureCollectionIn(v Viewport) *geojson.FeatureCollection {
	b := v.Bound()
	return l.features(b.Contains)
}

func (l *Layer) features(keep func(orb.Point) bool) *geojson.FeatureCollection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fc := geojson.NewFeatureCollection()
	for _, m := range l.markers {
		if !keep(m.Position) {
			continue
		}
		r := l.index[m.RecordID]
		f := geojson.NewFeature(m.Position)
		f.ID = m.RecordID
		f.Properties["id"] = m.RecordID
		f.Properties["title"] = r.Title
		f.Properties["type"] = r.Type
		f.Properties["status"] = r.Status.String()
		f.Properties["statusLabel"] = r.Status.Label()
		f.Properties["color"] = m.Color
		f.Properties["icon"] = m.Icon
		fc.Append(f)
	}
	return fc
}
