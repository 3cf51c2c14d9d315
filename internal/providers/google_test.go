package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"repscore-engine/internal/domain"
)

func googleIdentity() domain.Identity {
	return domain.Identity{
		Property: domain.Property{ID: "p1", Name: "Driskill Hotel"},
		Platform: domain.PlatformGoogle,
		Ref:      "ChIJp1",
	}
}

func TestGoogleFetchOK(t *testing.T) {
	var gotPlaceID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPlaceID = r.URL.Query().Get("place_id")
		fmt.Fprint(w, `{"status":"OK","result":{"name":"The Driskill","rating":4.6,"user_ratings_total":5321}}`)
	}))
	defer srv.Close()

	g := NewGoogle("key123")
	g.Base = srv.URL

	res, err := g.Fetch(context.Background(), googleIdentity())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPlaceID != "ChIJp1" {
		t.Errorf("place_id = %q", gotPlaceID)
	}
	if res.RawScore != 4.6 || res.Scale != 5 || res.ReviewCount != 5321 {
		t.Errorf("result = %+v", res)
	}
	if res.Normalized() != 9.2 {
		t.Errorf("normalized = %v, want 9.2", res.Normalized())
	}
	if res.DisplayName != "The Driskill" {
		t.Errorf("name = %q", res.DisplayName)
	}
}

func TestGoogleStatusMapping(t *testing.T) {
	cases := []struct {
		status string
		want   domain.ErrorClass
	}{
		{"ZERO_RESULTS", domain.ClassNotListed},
		{"NOT_FOUND", domain.ClassNotListed},
		{"OVER_QUERY_LIMIT", domain.ClassRateLimited},
		{"REQUEST_DENIED", domain.ClassConfig},
		{"INVALID_REQUEST", domain.ClassConfig},
		{"SOMETHING_ELSE", domain.ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status":%q}`, tc.status)
			}))
			defer srv.Close()

			g := NewGoogle("key123")
			g.Base = srv.URL
			_, err := g.Fetch(context.Background(), googleIdentity())
			if domain.ClassOf(err) != tc.want {
				t.Errorf("class = %s, want %s", domain.ClassOf(err), tc.want)
			}
		})
	}
}

func TestGoogleHTTPErrors(t *testing.T) {
	cases := []struct {
		code int
		want domain.ErrorClass
	}{
		{http.StatusTooManyRequests, domain.ClassRateLimited},
		{http.StatusForbidden, domain.ClassConfig},
		{http.StatusInternalServerError, domain.ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
			}))
			defer srv.Close()

			g := NewGoogle("key123")
			g.Base = srv.URL
			_, err := g.Fetch(context.Background(), googleIdentity())
			if domain.ClassOf(err) != tc.want {
				t.Errorf("class = %s, want %s", domain.ClassOf(err), tc.want)
			}
		})
	}
}

func TestGoogleMissingKey(t *testing.T) {
	g := NewGoogle("")
	_, err := g.Fetch(context.Background(), googleIdentity())
	if domain.ClassOf(err) != domain.ClassConfig {
		t.Errorf("class = %s, want CONFIG_ERROR", domain.ClassOf(err))
	}
}
