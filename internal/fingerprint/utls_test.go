package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransport_GoProfile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr, err := Transport(ProfileGo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := &http.Client{Transport: tr}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTransport_BrowserProfilesConstruct(t *testing.T) {
	for _, p := range []Profile{ProfileChrome, ProfileFirefox} {
		if _, err := Transport(p); err != nil {
			t.Errorf("profile %q: %v", p, err)
		}
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	if _, err := Transport("netscape"); err == nil {
		t.Errorf("expected error for unknown profile")
	}
}
