package complaints

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the triage state of a complaint.
type Status int

const (
	UnderReview Status = iota
	Resolved
	Unresolved
	Rejected
)

var statusNames = [...]string{"UnderReview", "Resolved", "Unresolved", "Rejected"}

// Turkish labels shown in tables and popups.
var statusLabels = [...]string{"İnceleniyor", "Çözüldü", "Çözülmedi", "Reddedildi"}

// Statuses lists every status in display order.
func Statuses() []Status { return []Status{UnderReview, Resolved, Unresolved, Rejected} }

func (s Status) Valid() bool { return s >= UnderReview && s <= Rejected }

func (s Status) String() string {
	if !s.Valid() {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

// Label is the human readable name.
func (s Status) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return statusLabels[s]
}

// ParseStatus accepts the English name, the Turkish label or the numeric value.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for i := range statusNames {
		if strings.EqualFold(v, statusNames[i]) || v == statusLabels[i] {
			return Status(i), nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	return 0, fmt.Errorf("unknown complaint status %q", v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid complaint status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both the string form and the API's numeric enum.
func (s *Status) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !Status(n).Valid() {
			return fmt.Errorf("invalid complaint status %d", n)
		}
		*s = Status(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("complaint status: %w", err)
	}
	p, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Longitude >= -180 && c.Longitude <= 180 && c.Latitude >= -90 && c.Latitude <= 90
}

// Record is a complaint as returned by the complaint API.
type Record struct {
	ID                int         `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Location          *Coordinate `json:"location,omitempty"`
	Status            Status      `json:"status"`
	Type              string      `json:"type"`
	DepartmentID      int         `json:"departmentId,omitempty"`
	PhotoURL          string      `json:"photoUrl,omitempty"`
	VerificationCount int         `json:"verificationCount"`
}

// HasLocation reports whether the record can be placed on a map.
func (r Record) HasLocation() bool { return r.Location != nil && r.Location.Valid() }

// Metrics are the summary cards shown above a dashboard.
type Metrics struct {
	TotalUsers         int `json:"totalUsers"`
	TotalComplaints    int `json:"totalComplaints"`
	ResolvedComplaints int `json:"resolvedComplaints"`
	PendingComplaints  int `json:"pendingComplaints"`
}

// FilterAll selects every record.
const FilterAll = "All"

// FilterByType returns the records whose Type equals kind. An empty kind or
// FilterAll returns list unchanged.
func FilterByType(list []Record, kind string) []Record {
	kind = strings.TrimSpace(kind)
	if kind == "" || kind == FilterAll {
		return list
	}
	out := make([]Record, 0, len(list))
	for _, r := range list {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

// Types returns the distinct record types in first-seen order.
func Types(list []Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range list {
		if r.Type != "" && !seen[r.Type] {
			seen[r.Type] = true
			out = append(out, r.Type)
		}
	}
	return out
}
