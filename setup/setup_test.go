package setup

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestManager(t *testing.T, server *httptest.Server) *Manager {
	t.Helper()

	return NewManager(Config{
		EnvFile:        filepath.Join(t.TempDir(), ".env"),
		ModelsPath:     t.TempDir(),
		HuggingFaceAPI: server.URL,
		CivitAIAPI:     server.URL,
	})
}

func TestSaveEnvPreservesLayout(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	original := strings.Join([]string{
		"# bot credentials",
		"BOT_TOKEN=old-token",
		"",
		`fluxversion="fluxfusion6GB4step.json" # workflow to run`,
		"GUILD_ID=123",
	}, "\n") + "\n"
	if err := os.WriteFile(envFile, []byte(original), 0o644); err != nil {
		t.Fatalf("error writing .env: %v", err)
	}

	manager := NewManager(Config{EnvFile: envFile})
	err := manager.SaveEnv(map[string]string{
		"BOT_TOKEN":   "new-token",
		"fluxversion": "fluxfusion8GB4step.json",
		"NEW_KEY":     "added",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatalf("error reading .env: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	want := []string{
		"# bot credentials",
		"BOT_TOKEN=new-token",
		"",
		`fluxversion="fluxfusion8GB4step.json" # workflow to run`,
		"GUILD_ID=123",
		"NEW_KEY=added",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), data)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSaveTokensRoundTrip(t *testing.T) {
	manager := NewManager(Config{EnvFile: filepath.Join(t.TempDir(), ".env")})

	if err := manager.SaveTokens("hf-token", "civitai-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envVars, err := manager.LoadEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envVars["HUGGINGFACE_TOKEN"] != "hf-token" || envVars["CIVITAI_API_TOKEN"] != "civitai-token" {
		t.Errorf("envVars = %v", envVars)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	manager := NewManager(Config{EnvFile: filepath.Join(t.TempDir(), ".env")})

	envVars, err := manager.LoadEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envVars) != 0 {
		t.Errorf("envVars = %v, want empty", envVars)
	}
}

func TestValidateHuggingFaceToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/whoami-v2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "Bearer good-token" {
			fmt.Fprint(w, `{"name": "someone"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	manager := newTestManager(t, server)
	if !manager.ValidateHuggingFaceToken("good-token") {
		t.Error("a valid token was rejected")
	}
	if manager.ValidateHuggingFaceToken("bad-token") {
		t.Error("an invalid token was accepted")
	}
}

func TestValidateCivitAIToken(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	manager := newTestManager(t, server)
	if !manager.ValidateCivitAIToken("token") {
		t.Error("a reachable endpoint was rejected")
	}

	status = http.StatusServiceUnavailable
	if manager.ValidateCivitAIToken("token") {
		t.Error("an unreachable endpoint was accepted")
	}
}

func TestCivitaiDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/model-versions/944957":
			fmt.Fprint(w, `{"files": [
				{"primary": false, "downloadUrl": "https://example.com/config.yaml"},
				{"primary": true, "downloadUrl": "https://example.com/checkpoint.safetensors"}
			]}`)
		case "/api/v1/model-versions/111111":
			fmt.Fprint(w, `{"files": [{"primary": false, "downloadUrl": "https://example.com/config.yaml"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	manager := newTestManager(t, server)

	url, err := manager.civitaiDownloadURL("944957", "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://example.com/checkpoint.safetensors" {
		t.Errorf("url = %q", url)
	}

	if _, err := manager.civitaiDownloadURL("111111", "token"); err == nil {
		t.Fatal("expected an error when no file is primary")
	}
	if _, err := manager.civitaiDownloadURL("222222", "token"); err == nil {
		t.Fatal("expected an error for an unknown version")
	}
}

func TestDownloadModel(t *testing.T) {
	content := strings.Repeat("weights ", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/black-forest-labs/FLUX.1-dev/resolve/main/ae.safetensors" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf-token" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	var lastFraction float64
	modelsPath := t.TempDir()
	manager := NewManager(Config{
		EnvFile:        filepath.Join(t.TempDir(), ".env"),
		ModelsPath:     modelsPath,
		HuggingFaceAPI: server.URL,
		Progress: func(name string, fraction float64) {
			lastFraction = fraction
		},
	})
	manager.SetTokens("hf-token", "")

	if err := manager.DownloadModel(BaseModels[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(modelsPath, "vae", "ae.safetensors"))
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(data) != content {
		t.Errorf("downloaded content does not match")
	}
	if lastFraction != 1 {
		t.Errorf("final progress = %f, want 1", lastFraction)
	}
}

func TestDownloadModelRemovesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("truncated"))
	}))
	defer server.Close()

	modelsPath := t.TempDir()
	manager := NewManager(Config{
		EnvFile:        filepath.Join(t.TempDir(), ".env"),
		ModelsPath:     modelsPath,
		HuggingFaceAPI: server.URL,
	})

	if err := manager.DownloadModel(BaseModels[0]); err == nil {
		t.Fatal("expected an error for a truncated download")
	}
	if _, err := os.Stat(filepath.Join(modelsPath, "vae", "ae.safetensors")); !os.IsNotExist(err) {
		t.Errorf("partial file was left behind")
	}
}

func TestDownloadDependenciesSkipsExisting(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, "weights")
	}))
	defer server.Close()

	modelsPath := t.TempDir()
	for _, model := range BaseModels {
		dir := filepath.Join(modelsPath, strings.Trim(model.Path, "/"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("error creating %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, model.Filename), []byte("existing"), 0o644); err != nil {
			t.Fatalf("error writing %s: %v", model.Filename, err)
		}
	}

	manager := NewManager(Config{
		EnvFile:        filepath.Join(t.TempDir(), ".env"),
		ModelsPath:     modelsPath,
		HuggingFaceAPI: server.URL,
	})

	if err := manager.DownloadDependencies(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 0 {
		t.Errorf("server saw %d requests, want 0 when every model exists", got)
	}
}

func TestCheckpointsCarryWorkflows(t *testing.T) {
	for _, checkpoint := range Checkpoints {
		if checkpoint.Workflow == "" {
			t.Errorf("checkpoint %s has no workflow", checkpoint.Name)
		}
		if checkpoint.Source == SourceCivitAI && checkpoint.VersionID == "" {
			t.Errorf("checkpoint %s has no version ID", checkpoint.Name)
		}
	}
}
