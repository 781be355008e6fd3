package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/scene"
	"voxelpath.ai/internal/sim/agent"
	"voxelpath.ai/internal/terrain/terraintest"
)

func startServer(t *testing.T, opts muxOptions) *httptest.Server {
	t.Helper()
	cat := catalogs.Default()
	tune := settings.Defaults()
	tune.TickRateHz = 100
	ag, err := agent.New(agent.Config{
		Scene: &scene.Scene{
			ID:      "flat",
			Store:   terraintest.Flat(cat, 16),
			Agent:   mgl64.Vec3{0.5, terraintest.FloorY + 1, 0.5},
			Hazards: favoring.NewHazards(),
		},
		Catalog:  cat,
		Settings: tune,
	})
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ag.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(buildMux(ag, nil, opts))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestGoalEndpoint(t *testing.T) {
	v, err := loadValidator(filepath.Join("..", "..", "schemas"))
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	srv := startServer(t, muxOptions{Validator: v})

	resp, body := post(t, srv.URL+"/v1/goal", `{"type":"GOAL","protocol_version":"1.0","id":"g1","goal":{"kind":"XZ","pos":[8,0,0]}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var ack protocol.AckMsg
	if err := json.Unmarshal(body, &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ack.Accepted || ack.AckFor != "g1" {
		t.Fatalf("ack=%+v", ack)
	}

	for _, bad := range []string{
		`{"type":"GOAL","protocol_version":"1.0"}`,
		`{"type":"GOAL","protocol_version":"1.0","goal":{"kind":"SIDEWAYS"}}`,
		`{"type":"GOAL","protocol_version":"1.0","goal":{"kind":"XZ","pos":[1,2]}}`,
		`{"type":"GOAL","protocol_version":"1.0","goal":{"kind":"NEAR","pos":[1,2,3],"range":500}}`,
		`not json`,
	} {
		resp, body := post(t, srv.URL+"/v1/goal", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", bad, resp.StatusCode, body)
		}
	}

	if resp, _ := get(t, srv.URL+"/v1/goal"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /v1/goal status=%d", resp.StatusCode)
	}
}

func TestStatusAndMetrics(t *testing.T) {
	srv := startServer(t, muxOptions{})

	if resp, body := get(t, srv.URL+"/healthz"); resp.StatusCode != 200 || string(body) != "ok" {
		t.Fatalf("healthz %d %q", resp.StatusCode, body)
	}

	resp, body := get(t, srv.URL+"/v1/status")
	var st protocol.StatusMsg
	if resp.StatusCode != 200 || json.Unmarshal(body, &st) != nil {
		t.Fatalf("status %d %s", resp.StatusCode, body)
	}
	if st.Type != protocol.TypeStatus {
		t.Fatalf("status=%+v", st)
	}

	resp, body = get(t, srv.URL+"/v1/path")
	var p protocol.PathMsg
	if resp.StatusCode != 200 || json.Unmarshal(body, &p) != nil {
		t.Fatalf("path %d %s", resp.StatusCode, body)
	}

	_, body = get(t, srv.URL+"/metrics")
	for _, want := range []string{"voxelpath_tick ", `voxelpath_calcs_total{result="FAILURE"}`, `voxelpath_queue_depth{queue="goals"}`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(string(body), "voxelpath_index_") {
		t.Fatalf("index metrics without an index")
	}

	if resp, _ := get(t, srv.URL+"/v1/calcs"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("calcs without index status=%d", resp.StatusCode)
	}
}

func TestAdminEndpoints(t *testing.T) {
	dir := t.TempDir()
	srv := startServer(t, muxOptions{SceneDir: dir, EnableAdmin: true})

	resp, body := post(t, srv.URL+"/admin/v1/hazards", `{"id":"fire","center":[3,5,0],"radius":2,"coefficient":4}`)
	if resp.StatusCode != 200 {
		t.Fatalf("set hazard %d %s", resp.StatusCode, body)
	}
	for _, bad := range []string{
		`{"id":"x","radius":0,"coefficient":2}`,
		`{"id":"x","radius":1000000,"coefficient":2}`,
		`{"id":"x","radius":3,"coefficient":-1}`,
		`{"radius":3,"coefficient":2}`,
	} {
		if resp, _ := post(t, srv.URL+"/admin/v1/hazards", bad); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("hazard %s status=%d", bad, resp.StatusCode)
		}
	}
	_, body = get(t, srv.URL+"/admin/v1/hazards")
	var list []hazardReq
	if err := json.Unmarshal(body, &list); err != nil || len(list) != 1 || list[0].ID != "fire" || list[0].Center != [3]int{3, 5, 0} {
		t.Fatalf("hazards=%s err=%v", body, err)
	}
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/admin/v1/hazards?id=fire", nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil || dresp.StatusCode != 200 {
		t.Fatalf("delete err=%v", err)
	}
	dresp.Body.Close()

	resp, body = post(t, srv.URL+"/admin/v1/cancel?force=1", "")
	var ack protocol.AckMsg
	if resp.StatusCode != 200 || json.Unmarshal(body, &ack) != nil || !ack.Accepted {
		t.Fatalf("cancel %d %s", resp.StatusCode, body)
	}

	resp, body = post(t, srv.URL+"/admin/v1/scene", "")
	if resp.StatusCode != 200 {
		t.Fatalf("scene %d %s", resp.StatusCode, body)
	}
	var out struct {
		OK   bool   `json:"ok"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.OK {
		t.Fatalf("scene body=%s", body)
	}
	if _, err := os.Stat(out.Path); err != nil {
		t.Fatalf("scene file: %v", err)
	}
}

func TestAdminDisabled(t *testing.T) {
	srv := startServer(t, muxOptions{})
	if resp, _ := post(t, srv.URL+"/admin/v1/cancel", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("VP_TEST_FLAG", "yes")
	if !envBool("VP_TEST_FLAG", false) {
		t.Fatalf("yes should be true")
	}
	t.Setenv("VP_TEST_FLAG", "off")
	if envBool("VP_TEST_FLAG", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("VP_TEST_FLAG", "maybe")
	if !envBool("VP_TEST_FLAG", true) {
		t.Fatalf("unknown should fall back")
	}
}
