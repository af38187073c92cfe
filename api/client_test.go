package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClientFromEnvironment(t *testing.T) {
	testCases := map[string]struct {
		value  string
		expect string
	}{
		"empty":                     {value: "", expect: "http://127.0.0.1:8090"},
		"only address":              {value: "1.2.3.4", expect: "http://1.2.3.4:8090"},
		"address and port":          {value: "1.2.3.4:1234", expect: "http://1.2.3.4:1234"},
		"scheme http and address":   {value: "http://1.2.3.4", expect: "http://1.2.3.4:80"},
		"scheme https and address":  {value: "https://1.2.3.4", expect: "https://1.2.3.4:443"},
		"scheme, address, and port": {value: "https://1.2.3.4:1234", expect: "https://1.2.3.4:1234"},
		"hostname":                  {value: "example.com", expect: "http://example.com:8090"},
		"trailing slash port":       {value: "example.com:1234/", expect: "http://example.com:1234"},
	}

	for k, v := range testCases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("AICI_HOST", v.value)

			client, err := ClientFromEnvironment()
			if err != nil {
				t.Fatal(err)
			}

			if client.base.String() != v.expect {
				t.Fatalf("expected %s, got %s", v.expect, client.base.String())
			}
		})
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(&url.URL{Scheme: "http", Host: ts.Listener.Addr().String()}, http.DefaultClient)
}

func TestClientDo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sequences/seq3/commit" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req CommitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		json.NewEncoder(w).Encode(SequenceResponse{ID: "seq3", Kind: "regex", Text: "ab", Tokens: []int32{req.Token}})
	})

	resp, err := client.Commit(context.Background(), "seq3", 7)
	if err != nil {
		t.Fatal(err)
	}

	want := &SequenceResponse{ID: "seq3", Kind: "regex", Text: "ab", Tokens: []int32{7}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestClientError(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   StatusError
	}{
		{
			name:   "structured",
			status: http.StatusNotFound,
			body:   `{"error":"sequence not found","code":"not_found"}`,
			want:   StatusError{StatusCode: http.StatusNotFound, Status: "404 Not Found", ErrorMessage: "sequence not found", Code: ErrCodeNotFound},
		},
		{
			name:   "plain text",
			status: http.StatusBadGateway,
			body:   "upstream down",
			want:   StatusError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway", ErrorMessage: "upstream down"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := client.Step(context.Background(), "seq1")

			var serr StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("expected StatusError, got %v", err)
			}

			if diff := cmp.Diff(tc.want, serr); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClientDrop(t *testing.T) {
	var called bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = r.Method == http.MethodDelete && r.URL.Path == "/v1/sequences/seq9"
	})

	if err := client.Drop(context.Background(), "seq9"); err != nil {
		t.Fatal(err)
	}

	if !called {
		t.Error("expected DELETE /v1/sequences/seq9")
	}
}

func TestParseSeqID(t *testing.T) {
	if id, err := ParseSeqID("seq12"); err != nil || id != 12 {
		t.Errorf("expected 12, got %d %v", id, err)
	}

	for _, s := range []string{"", "seq", "12", "seqx", "seq-1"} {
		if _, err := ParseSeqID(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}
