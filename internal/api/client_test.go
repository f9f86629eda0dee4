package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kentsikayet/portal/internal/complaints"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func TestComplaints_SendsBearerAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/complaints/department", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":3,"title":"Su kesintisi","type":"Su","status":2,"location":{"longitude":32.8,"latitude":39.9},"verificationCount":4}]`))
	})

	list, err := c.Complaints(context.Background(), "tok-1", ScopeDepartment)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 3, list[0].ID)
	require.Equal(t, complaints.Unresolved, list[0].Status)
	require.True(t, list[0].HasLocation())
	require.Equal(t, 4, list[0].VerificationCount)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		var cr Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cr))
		if cr.Password != "doğru" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"E-posta veya şifre hatalı"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"a.b.c"}`))
	})

	tok, err := c.Login(context.Background(), Credentials{Email: "a@b.tr", Password: "doğru"})
	require.NoError(t, err)
	require.Equal(t, "a.b.c", tok)

	_, err = c.Login(context.Background(), Credentials{Email: "a@b.tr", Password: "yanlış"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	require.Contains(t, err.Error(), "E-posta veya şifre hatalı")
}

func TestDeleteComplaint_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/complaints/5", r.URL.Path)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.DeleteComplaint(context.Background(), "tok", 5)
	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stats/complaints/resolved", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":17}`))
	})
	n, err := c.Count(context.Background(), "tok", CountResolvedComplaints)
	require.NoError(t, err)
	require.Equal(t, 17, n)
}

func TestDirectoryGenerics(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":1,"name":"Temizlik İşleri"}]`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			var d Department
			require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
			d.ID = 2
			_ = json.NewEncoder(w).Encode(d)
		}
	})
	ctx := context.Background()

	deps, err := List[Department](ctx, c, "tok")
	require.NoError(t, err)
	require.Equal(t, []Department{{ID: 1, Name: "Temizlik İşleri"}}, deps)

	created, err := Create(ctx, c, "tok", Department{Name: "Fen İşleri"})
	require.NoError(t, err)
	require.Equal(t, 2, created.ID)

	_, err = Update(ctx, c, "tok", 2, ComplaintType{Name: "Çöp", DepartmentID: 1})
	require.NoError(t, err)
	require.NoError(t, Delete[User](ctx, c, "tok", 9))

	require.Equal(t, []string{
		"GET /departments",
		"POST /departments",
		"PUT /complaint-types/2",
		"DELETE /users/9",
	}, seen)
}

func TestRegistrationFlow(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/auth/check-email" {
			_, _ = w.Write([]byte(`{"exists":false}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	exists, err := c.EmailRegistered(ctx, "yeni@kent.tr")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, c.SendCode(ctx, "yeni@kent.tr"))
	require.NoError(t, c.VerifyCode(ctx, "yeni@kent.tr", "123456"))
	require.NoError(t, c.Register(ctx, Registration{Name: "Ali", Surname: "Kaya", Email: "yeni@kent.tr", Password: "secret1", Code: "123456"}))
	require.Equal(t, []string{"/auth/check-email", "/auth/send-code", "/auth/verify-code", "/auth/register"}, paths)
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	require.Equal(t, "plain text", errorMessage([]byte("plain text\n")))
	require.Equal(t, "", errorMessage(nil))
}
