package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/pkg/metrics"
)

type fakeSource struct {
	mu        sync.Mutex
	list      []complaints.Record
	listErr   error
	deleteErr error
	updateErr error
	solveErr  error
	counts    map[api.Counter]int
	onUpdate  func(complaints.Record)

	listCalls   int
	deleteCalls int
	createCalls int
	tokens      []string
}

func (f *fakeSource) Complaints(ctx context.Context, token string, scope api.Scope) ([]complaints.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.tokens = append(f.tokens, token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]complaints.Record(nil), f.list...), nil
}

func (f *fakeSource) CreateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	r.ID = 100 + f.createCalls
	return r, nil
}

func (f *fakeSource) UpdateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error) {
	if f.onUpdate != nil {
		f.onUpdate(r)
	}
	if f.updateErr != nil {
		return complaints.Record{}, f.updateErr
	}
	return r, nil
}

func (f *fakeSource) DeleteComplaint(ctx context.Context, token string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeSource) VerifyComplaint(ctx context.Context, token string, id int) (complaints.Record, error) {
	for _, r := range f.list {
		if r.ID == id {
			r.VerificationCount++
			return r, nil
		}
	}
	return complaints.Record{}, &api.Error{Op: "verify_complaint", Status: 404}
}

func (f *fakeSource) AddSolution(ctx context.Context, token string, s api.Solution) (api.Solution, error) {
	if f.solveErr != nil {
		return api.Solution{}, f.solveErr
	}
	s.ID = 1
	return s, nil
}

func (f *fakeSource) Count(ctx context.Context, token string, c api.Counter) (int, error) {
	return f.counts[c], nil
}

func at(lon, lat float64) *complaints.Coordinate {
	return &complaints.Coordinate{Longitude: lon, Latitude: lat}
}

func threeComplaints() []complaints.Record {
	return []complaints.Record{
		{ID: 1, Title: "Konteyner dolu", Type: "Çöp", Location: at(32.85, 39.92)},
		{ID: 5, Title: "Sokak lambası yanmıyor", Type: "Elektrik", Location: at(32.86, 39.93)},
		{ID: 7, Title: "Çöp toplanmadı", Type: "Çöp", Location: at(32.87, 39.94), Status: complaints.Resolved},
	}
}

func loaded(t *testing.T, v Variant, src *fakeSource) *Dashboard {
	t.Helper()
	d := New(v, src, nil)
	require.NoError(t, d.Load(context.Background(), "tok"))
	return d
}

func ids(rows []complaints.Record) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestFilter_RowsAndMarkersMatchType(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Citizen, src)

	v := d.Filter("Çöp")
	require.Len(t, v.Rows, 2)
	require.Len(t, v.Markers, 2)
	for _, r := range v.Rows {
		require.Equal(t, "Çöp", r.Type)
	}
	for _, m := range v.Markers {
		require.Contains(t, []int{1, 7}, m.RecordID)
	}

	v = d.Filter(complaints.FilterAll)
	require.Equal(t, []int{1, 5, 7}, ids(v.Rows))
	require.Len(t, v.Markers, 3)
	require.Equal(t, 1, src.listCalls, "filtering must not fetch")
}

func TestFilter_TypesAndMetricsFromCache(t *testing.T) {
	d := loaded(t, Citizen, &fakeSource{list: threeComplaints()})
	v := d.View()
	require.Equal(t, []string{"Çöp", "Elektrik"}, v.Types)
	require.Equal(t, complaints.Metrics{TotalComplaints: 3, ResolvedComplaints: 1, PendingComplaints: 2}, v.Metrics)
}

func TestDelete_RemovesExactlyOneOnSuccess(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Admin, src)

	require.NoError(t, d.Delete(context.Background(), "tok", 5, true))
	require.Equal(t, []int{1, 7}, ids(d.View().Rows))
	require.Equal(t, 1, src.deleteCalls)
}

func TestDelete_FailureLeavesCacheUnchanged(t *testing.T) {
	src := &fakeSource{list: threeComplaints(), deleteErr: &api.Error{Op: "delete_complaint", Status: 500}}
	d := loaded(t, Admin, src)
	before := d.View()

	err := d.Delete(context.Background(), "tok", 5, true)
	require.Error(t, err)
	require.Equal(t, 500, api.StatusOf(err))

	after := d.View()
	require.Equal(t, before.Rows, after.Rows)
	require.Equal(t, before.Generation, after.Generation)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Admin, src)

	require.ErrorIs(t, d.Delete(context.Background(), "tok", 5, false), ErrNotConfirmed)
	require.Zero(t, src.deleteCalls)
	require.Len(t, d.View().Rows, 3)
}

func TestLoad_SuccessDiscardsLocalStatusEdits(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Citizen, src)

	require.NoError(t, d.SetStatus(5, complaints.Rejected))
	r, _ := d.Record(5)
	require.Equal(t, complaints.Rejected, r.Status)

	require.NoError(t, d.Load(context.Background(), "tok"))
	r, _ = d.Record(5)
	require.Equal(t, complaints.UnderReview, r.Status)
}

func TestLoad_FailureKeepsCache(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Citizen, src)
	src.listErr = errors.New("connection refused")

	require.Error(t, d.Load(context.Background(), "tok"))
	require.Len(t, d.View().Rows, 3)
}

func TestLoad_AdminMetricsFromCounters(t *testing.T) {
	src := &fakeSource{list: threeComplaints(), counts: map[api.Counter]int{
		api.CountUsers:              40,
		api.CountComplaints:         12,
		api.CountResolvedComplaints: 5,
		api.CountPendingComplaints:  4,
	}}
	d := loaded(t, Admin, src)
	require.Equal(t, complaints.Metrics{TotalUsers: 40, TotalComplaints: 12, ResolvedComplaints: 5, PendingComplaints: 4}, d.View().Metrics)
}

func TestSetStatus_RebuildsMarkers(t *testing.T) {
	d := loaded(t, Admin, &fakeSource{list: threeComplaints()})
	g := d.View().Generation
	rebuilds := testutil.ToFloat64(metrics.MarkerRebuilds.WithLabelValues(string(Admin)))

	require.NoError(t, d.SetStatus(1, complaints.Resolved))
	v := d.View()
	require.Greater(t, v.Generation, g)
	require.Equal(t, rebuilds+1, testutil.ToFloat64(metrics.MarkerRebuilds.WithLabelValues(string(Admin))))
	d.View()
	require.Equal(t, rebuilds+1, testutil.ToFloat64(metrics.MarkerRebuilds.WithLabelValues(string(Admin))), "unchanged list does not rebuild")
	for _, m := range v.Markers {
		if m.RecordID == 1 {
			require.Equal(t, "#5cb85c", m.Color)
		}
	}
	require.ErrorIs(t, d.SetStatus(99, complaints.Resolved), ErrNotFound)
}

func TestStatusEdits_PerVariant(t *testing.T) {
	dep := loaded(t, Department, &fakeSource{list: threeComplaints()})
	require.ErrorIs(t, dep.SetStatus(1, complaints.Resolved), ErrUnsupported)

	cit := loaded(t, Citizen, &fakeSource{list: threeComplaints()})
	_, err := cit.UpdateStatus(context.Background(), "tok", 1, complaints.Resolved)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestUpdateStatus_ReplacesWithServerEcho(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Department, src)

	got, err := d.UpdateStatus(context.Background(), "tok", 5, complaints.Resolved)
	require.NoError(t, err)
	require.Equal(t, complaints.Resolved, got.Status)
	r, _ := d.Record(5)
	require.Equal(t, complaints.Resolved, r.Status)
}

func TestUpdateStatus_FailureLeavesCacheUnchanged(t *testing.T) {
	src := &fakeSource{list: threeComplaints(), updateErr: &api.Error{Op: "update_complaint", Status: 400}}
	d := loaded(t, Department, src)

	_, err := d.UpdateStatus(context.Background(), "tok", 5, complaints.Resolved)
	require.Error(t, err)
	r, _ := d.Record(5)
	require.Equal(t, complaints.UnderReview, r.Status)
}

func TestUpdateStatus_LatestIssuedWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{list: threeComplaints()}
	src.onUpdate = func(r complaints.Record) {
		if r.Status == complaints.Resolved {
			close(entered)
			<-release
		}
	}
	d := loaded(t, Department, src)

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.UpdateStatus(context.Background(), "tok", 5, complaints.Resolved)
		firstErr <- err
	}()
	<-entered

	_, err := d.UpdateStatus(context.Background(), "tok", 5, complaints.Rejected)
	require.NoError(t, err)

	close(release)
	require.ErrorIs(t, <-firstErr, ErrSuperseded)

	r, _ := d.Record(5)
	require.Equal(t, complaints.Rejected, r.Status)
}

func TestSave_ValidationIssuesNoRequest(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Citizen, src)

	_, err := d.Save(context.Background(), "tok", complaints.Draft{Type: "Çöp"})
	var fe complaints.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe, "title")
	require.Contains(t, fe, "location")
	require.Zero(t, src.createCalls)
}

func TestSave_CreateAppendsServerRecord(t *testing.T) {
	src := &fakeSource{list: threeComplaints()}
	d := loaded(t, Citizen, src)

	r, err := d.Save(context.Background(), "tok", complaints.Draft{
		Title:       "Kaldırım kırık",
		Description: "Okul önündeki kaldırım kırık.",
		Type:        "Yol",
		Location:    at(32.8, 39.9),
	})
	require.NoError(t, err)
	require.Equal(t, 101, r.ID)
	require.Equal(t, complaints.UnderReview, r.Status)
	require.Equal(t, []int{1, 5, 7, 101}, ids(d.View().Rows))
}

func TestSave_UpdateReplacesByID(t *testing.T) {
	d := loaded(t, Admin, &fakeSource{list: threeComplaints()})
	r, _ := d.Record(7)
	draft := complaints.DraftFrom(r)
	draft.Description = "Haftada bir toplanıyor."
	draft.Title = "Çöp geç toplanıyor"

	_, err := d.Save(context.Background(), "tok", draft)
	require.NoError(t, err)
	r, _ = d.Record(7)
	require.Equal(t, "Çöp geç toplanıyor", r.Title)
	require.Len(t, d.View().Rows, 3)
}

func TestResolve_StoresPhotoAndStatus(t *testing.T) {
	d := loaded(t, Department, &fakeSource{list: threeComplaints()})
	r, err := d.Resolve(context.Background(), "tok", 5, "Lamba değiştirildi", "http://minio/complaint-photos/x.jpg")
	require.NoError(t, err)
	require.Equal(t, complaints.Resolved, r.Status)
	require.Equal(t, "http://minio/complaint-photos/x.jpg", r.PhotoURL)
}

func TestVerify_ReplacesCount(t *testing.T) {
	d := loaded(t, Citizen, &fakeSource{list: threeComplaints()})
	r, err := d.Verify(context.Background(), "tok", 1)
	require.NoError(t, err)
	require.Equal(t, 1, r.VerificationCount)
	got, _ := d.Record(1)
	require.Equal(t, 1, got.VerificationCount)
}

func TestView_PopupFollowsClicks(t *testing.T) {
	d := loaded(t, Citizen, &fakeSource{list: threeComplaints()})
	d.View()
	_, ok := d.Layer().Open(5)
	require.True(t, ok)
	require.Equal(t, 5, d.View().Popup.ID)

	require.Nil(t, d.Filter("Çöp").Popup, "popup of a filtered-out record is closed")
}

func TestResolve_FailuresLeaveCacheAndReportLinkState(t *testing.T) {
	src := &fakeSource{list: threeComplaints(), solveErr: &api.Error{Op: "add_solution", Status: 400}}
	d := loaded(t, Department, src)

	_, err := d.Resolve(context.Background(), "tok", 1, "boşaltıldı", "/photos/complaints/a.png")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSolutionLinked))
	r, _ := d.Record(1)
	require.Equal(t, complaints.UnderReview, r.Status)

	src.solveErr = nil
	src.updateErr = errors.New("api down")
	_, err = d.Resolve(context.Background(), "tok", 1, "boşaltıldı", "/photos/complaints/a.png")
	require.ErrorIs(t, err, ErrSolutionLinked)
	r, _ = d.Record(1)
	require.Equal(t, complaints.UnderReview, r.Status)
	require.Empty(t, r.PhotoURL)
}
