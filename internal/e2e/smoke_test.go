//go:build e2e

// Package e2e drives a running resort over HTTP. Start the server with
// `go run ./cmd/resort` and run `go test -tags e2e ./internal/e2e`.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("RESORT_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func call(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type status struct {
	Time struct {
		Day  int `json:"day"`
		Hour int `json:"hour"`
	} `json:"time"`
	Population struct {
		Live    int `json:"live"`
		Spawned int `json:"spawned"`
	} `json:"population"`
	Driver struct {
		Ticks int `json:"ticks"`
	} `json:"driver"`
}

func TestSmoke_ClockRuns(t *testing.T) {
	var first, second status
	if code := call(t, http.MethodGet, "/api/world/status", nil, &first); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	time.Sleep(2 * time.Second)
	call(t, http.MethodGet, "/api/world/status", nil, &second)
	if second.Driver.Ticks <= first.Driver.Ticks {
		t.Errorf("driver did not tick: %d then %d", first.Driver.Ticks, second.Driver.Ticks)
	}
}

func TestSmoke_VisitorWalksIn(t *testing.T) {
	if code := call(t, http.MethodPost, "/api/world/time", map[string]int{"hour": 10}, nil); code != http.StatusOK {
		t.Fatalf("set time: got %d", code)
	}

	var v struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	code := call(t, http.MethodPost, "/api/visitors", map[string]string{"name": "Smoke"}, &v)
	if code == http.StatusConflict {
		t.Skip("resort is full")
	}
	if code != http.StatusCreated || v.ID == "" {
		t.Fatalf("spawn: got %d %+v", code, v)
	}
	t.Logf("visitor %s started as %s", v.ID, v.State)

	if code := call(t, http.MethodPost, "/api/visitors/"+v.ID+"/evict", map[string]string{"reason": "smoke test"}, &v); code != http.StatusOK {
		t.Fatalf("evict: got %d", code)
	}
	if v.State != "ReturningToSpawn" && v.State != "Pooled" {
		t.Errorf("evicted visitor is %s", v.State)
	}
}

func TestSmoke_Counters(t *testing.T) {
	var counters []struct {
		Name    string `json:"name"`
		Role    string `json:"role"`
		Staffed bool   `json:"staffed"`
	}
	if code := call(t, http.MethodGet, "/api/counters", nil, &counters); code != http.StatusOK {
		t.Fatalf("counters: got %d", code)
	}
	if len(counters) == 0 {
		t.Fatal("floor plan has no counters")
	}
	name := counters[0].Name
	call(t, http.MethodPost, "/api/counters/"+name+"/staffed", map[string]bool{"staffed": false}, nil)
	call(t, http.MethodPost, "/api/counters/"+name+"/staffed", map[string]bool{"staffed": true}, nil)
}
