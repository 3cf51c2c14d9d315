package alerts

import (
	"testing"

	"repscore-engine/internal/domain"
)

var testProps = []domain.Property{
	{ID: "p1", Name: "Hotel Aurora", City: "Denver"},
	{ID: "p2", Name: "Grand Hotel"},
	{ID: "p3", Name: "Grand Hotel Downtown"},
	{ID: "p4", Name: "St. Mary's Inn & Suites"},
}

var testMarkers = []string{"reputation alert", "review alert"}

func TestMatchFindsPropertyAndPlatform(t *testing.T) {
	subject := "New review alert: Hotel Aurora on Booking.com"
	prop, pl, ok := Match(subject, testProps, testMarkers)
	if !ok {
		t.Fatal("expected a match")
	}
	if prop.ID != "p1" || pl != domain.PlatformBooking {
		t.Errorf("got %s/%s", prop.ID, pl)
	}
}

func TestMatchRequiresMarker(t *testing.T) {
	if _, _, ok := Match("Hotel Aurora on Booking.com", testProps, testMarkers); ok {
		t.Error("subject without an alert marker should not match")
	}
}

func TestMatchRequiresPlatform(t *testing.T) {
	if _, _, ok := Match("Review alert for Hotel Aurora", testProps, testMarkers); ok {
		t.Error("subject without a platform token should not match")
	}
}

func TestMatchRequiresKnownProperty(t *testing.T) {
	if _, _, ok := Match("Review alert: Mystery Lodge on Expedia", testProps, testMarkers); ok {
		t.Error("unknown property should not match")
	}
}

func TestMatchLongestNameWins(t *testing.T) {
	subject := "Reputation alert: new Google review for Grand Hotel Downtown"
	prop, pl, ok := Match(subject, testProps, testMarkers)
	if !ok {
		t.Fatal("expected a match")
	}
	if prop.ID != "p3" {
		t.Errorf("got %s, want the longer name p3", prop.ID)
	}
	if pl != domain.PlatformGoogle {
		t.Errorf("platform = %s", pl)
	}
}

func TestMatchIgnoresPunctuation(t *testing.T) {
	subject := `REVIEW ALERT!! "St. Mary's Inn & Suites" rated on Expedia`
	prop, _, ok := Match(subject, testProps, testMarkers)
	if !ok {
		t.Fatal("expected a match despite punctuation differences")
	}
	if prop.ID != "p4" {
		t.Errorf("got %s", prop.ID)
	}
}

func TestMatchTripadvisorToken(t *testing.T) {
	subject := "Reputation alert - Hotel Aurora got a new Tripadvisor review"
	_, pl, ok := Match(subject, testProps, testMarkers)
	if !ok || pl != domain.PlatformTripadvisor {
		t.Errorf("ok=%v pl=%s", ok, pl)
	}
}

func TestContainsAnyCI(t *testing.T) {
	tests := []struct {
		s       string
		markers []string
		want    bool
	}{
		{"New Review Alert", []string{"review alert"}, true},
		{"nothing here", []string{"review alert"}, false},
		{"whatever", nil, false},
		{"REVIEW ALERT", []string{"  review alert  "}, true},
		{"x", []string{"", "x"}, true},
	}
	for _, tc := range tests {
		if got := containsAnyCI(tc.s, tc.markers); got != tc.want {
			t.Errorf("containsAnyCI(%q, %v) = %v, want %v", tc.s, tc.markers, got, tc.want)
		}
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"St. Mary's Inn & Suites", "st mary s inn suites"},
		{"  Hotel   Aurora  ", "hotel aurora"},
		{"GRAND-HOTEL", "grand hotel"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := cleanName(tc.in); got != tc.want {
			t.Errorf("cleanName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
