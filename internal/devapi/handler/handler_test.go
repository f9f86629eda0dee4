package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/claims"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/devapi/service"
	"github.com/kentsikayet/portal/internal/devapi/tokens"
)

func newServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.New(service.NewMemoryStore(), tokens.NewIssuer("handler-test-secret-0123456789abcd", time.Hour))
	_, err := svc.Seed(context.Background(), "admin@kent.local", "admin123")
	require.NoError(t, err)
	g := gin.New()
	RegisterRoutes(g, svc)
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/complaints")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/complaints", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBadIDAndBadJSON(t *testing.T) {
	srv, svc := newServer(t)
	tok, err := svc.Login(context.Background(), "admin@kent.local", "admin123")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/complaints/abc", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/complaints", strings.NewReader(`{"status":"Bogus"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// The portal's client talks to the stand-in end to end.
func TestClientAgainstDevAPI(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()
	c := api.NewClient(srv.URL, 5*time.Second)

	_, err := c.Login(ctx, api.Credentials{Email: "admin@kent.local", Password: "wrong"})
	require.ErrorIs(t, err, api.ErrUnauthorized)

	adminTok, err := c.Login(ctx, api.Credentials{Email: "admin@kent.local", Password: "admin123"})
	require.NoError(t, err)
	cl, err := claims.Decode(adminTok)
	require.NoError(t, err)
	require.True(t, cl.HasRole("Admin"))

	// citizen registration
	exists, err := c.EmailRegistered(ctx, "vatandas@kent.tr")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, c.SendCode(ctx, "vatandas@kent.tr"))
	code, err := svc.SendCode(ctx, "vatandas@kent.tr")
	require.NoError(t, err)
	require.NoError(t, c.VerifyCode(ctx, "vatandas@kent.tr", code))
	require.NoError(t, c.Register(ctx, api.Registration{Name: "Can", Surname: "Öz", Email: "vatandas@kent.tr", Password: "secret1", Code: code}))
	citizenTok, err := c.Login(ctx, api.Credentials{Email: "vatandas@kent.tr", Password: "secret1"})
	require.NoError(t, err)

	created, err := c.CreateComplaint(ctx, citizenTok, complaints.Record{
		Title:       "Çöp toplanmadı",
		Description: "Mahallede çöpler birikti.",
		Type:        "Çöp",
		Location:    &complaints.Coordinate{Longitude: 32.85, Latitude: 39.92},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	mine, err := c.Complaints(ctx, citizenTok, api.ScopeMine)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = api.List[api.User](ctx, c, citizenTok)
	require.Equal(t, http.StatusForbidden, api.StatusOf(err))

	users, err := api.List[api.User](ctx, c, adminTok)
	require.NoError(t, err)
	require.Len(t, users, 2)

	n, err := c.Count(ctx, adminTok, api.CountPendingComplaints)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	created.Status = complaints.Resolved
	updated, err := c.UpdateComplaint(ctx, adminTok, created)
	require.NoError(t, err)
	require.Equal(t, complaints.Resolved, updated.Status)

	sol, err := c.AddSolution(ctx, adminTok, api.Solution{ComplaintID: created.ID, Description: "Toplandı", PhotoURL: "http://photos/x.jpg"})
	require.NoError(t, err)
	require.NotZero(t, sol.ID)
	sols, err := c.Solutions(ctx, citizenTok, created.ID)
	require.NoError(t, err)
	require.Len(t, sols, 1)

	require.NoError(t, c.DeleteComplaint(ctx, citizenTok, created.ID))
	err = c.DeleteComplaint(ctx, citizenTok, created.ID)
	require.Equal(t, http.StatusNotFound, api.StatusOf(err))
}
