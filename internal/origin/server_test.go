package origin

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := NewServer(":0", map[string]string{
		"file1.txt": "hello",
		"file2.txt": "second file",
	}, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestHandleFile(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/files/file1.txt")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestHandleFileNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/files/missing.txt")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHandleRedirectChain(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/redirect/3")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d after following chain", resp.StatusCode, http.StatusOK)
	}
	if body != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestHandleRedirectSingleHop(t *testing.T) {
	ts := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ts.URL + "/redirect/1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/files/file1.txt" {
		t.Errorf("Location = %q, want %q", loc, "/files/file1.txt")
	}
}

func TestHandleRedirectBadHops(t *testing.T) {
	ts := newTestServer(t)

	for _, hops := range []string{"0", "-1", "abc"} {
		resp, _ := get(t, ts.URL+"/redirect/"+hops)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("hops=%s: status = %d, want %d", hops, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)

	tests := []int{200, 404, 500, 503}
	for _, code := range tests {
		resp, _ := get(t, ts.URL+"/status/"+strconv.Itoa(code))
		if resp.StatusCode != code {
			t.Errorf("status/%d returned %d", code, resp.StatusCode)
		}
	}
}

func TestHandleStatusBadCode(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/status/999")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleSlow(t *testing.T) {
	ts := newTestServer(t)

	start := time.Now()
	resp, body := get(t, ts.URL+"/slow?delay=50ms")
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body != "slow response" {
		t.Errorf("body = %q, want %q", body, "slow response")
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("reply arrived after %v, want at least 50ms", elapsed)
	}
}

func TestHandleSlowBadDelay(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/slow?delay=never")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("healthz body is not JSON: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q, want %q", health.Status, "ok")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
