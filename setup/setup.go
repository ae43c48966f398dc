package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager validates API tokens, downloads the model files a workflow needs
// and persists its choices back to the .env file.
type Manager struct {
	envFile    string
	modelsPath string

	hfToken      string
	civitaiToken string

	hfAPI      string
	civitaiAPI string
	client     *http.Client

	// progress receives the fraction downloaded of the current file.
	progress func(name string, fraction float64)
}

type Config struct {
	EnvFile    string
	ModelsPath string

	// HuggingFaceAPI and CivitAIAPI override the public endpoints.
	HuggingFaceAPI string
	CivitAIAPI     string
	HTTPClient     *http.Client

	Progress func(name string, fraction float64)
}

const (
	defaultHuggingFaceAPI = "https://huggingface.co"
	defaultCivitAIAPI     = "https://civitai.com"
)

func NewManager(cfg Config) *Manager {
	if cfg.EnvFile == "" {
		cfg.EnvFile = ".env"
	}
	if cfg.HuggingFaceAPI == "" {
		cfg.HuggingFaceAPI = defaultHuggingFaceAPI
	}
	if cfg.CivitAIAPI == "" {
		cfg.CivitAIAPI = defaultCivitAIAPI
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if cfg.Progress == nil {
		cfg.Progress = func(string, float64) {}
	}

	return &Manager{
		envFile:    cfg.EnvFile,
		modelsPath: cfg.ModelsPath,
		hfAPI:      cfg.HuggingFaceAPI,
		civitaiAPI: cfg.CivitAIAPI,
		client:     cfg.HTTPClient,
		progress:   cfg.Progress,
	}
}

func (m *Manager) SetTokens(hfToken, civitaiToken string) {
	m.hfToken = hfToken
	m.civitaiToken = civitaiToken
}

func (m *Manager) SetModelsPath(path string) {
	m.modelsPath = path
}

// ValidateHuggingFaceToken checks the token against the whoami endpoint.
func (m *Manager) ValidateHuggingFaceToken(token string) bool {
	req, err := http.NewRequest(http.MethodGet, m.hfAPI+"/api/whoami-v2", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateCivitAIToken checks the token against the models listing. CivitAI
// serves the listing without authentication, so only a working endpoint is
// required here; a bad token surfaces on download instead.
func (m *Manager) ValidateCivitAIToken(token string) bool {
	req, err := http.NewRequest(http.MethodGet, m.civitaiAPI+"/api/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusUnauthorized
}

// civitaiDownloadURL resolves a model version to its primary file URL.
func (m *Manager) civitaiDownloadURL(versionID, token string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/model-versions/%s", m.civitaiAPI, versionID), nil)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("civitai model version %s: %s", versionID, resp.Status)
	}

	var version struct {
		Files []struct {
			Primary     bool   `json:"primary"`
			DownloadURL string `json:"downloadUrl"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}

	for _, file := range version.Files {
		if file.Primary {
			return file.DownloadURL, nil
		}
	}

	return "", errors.New("no primary file found in model version")
}

// DownloadModel streams a model file to its place under the models dir,
// reporting progress. A failed download removes the partial file.
func (m *Manager) DownloadModel(model ModelFile) error {
	outputPath := filepath.Join(m.modelsPath, strings.Trim(model.Path, "/"), model.Filename)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	var url, token string
	switch model.Source {
	case SourceHuggingFace:
		url = fmt.Sprintf("%s/%s/resolve/main/%s", m.hfAPI, model.RepoID, model.File)
		token = m.hfToken
	case SourceCivitAI:
		token = m.civitaiToken
		var err error
		url, err = m.civitaiDownloadURL(model.VersionID, token)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown model source %q", model.Source)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: %s", model.Name, resp.Status)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}

	if err := m.copyWithProgress(out, resp.Body, model.Name, resp.ContentLength); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}

	return out.Close()
}

func (m *Manager) copyWithProgress(dst io.Writer, src io.Reader, name string, total int64) error {
	if total <= 0 {
		_, err := io.Copy(dst, src)
		m.progress(name, 1)
		return err
	}

	var downloaded int64
	buf := make([]byte, 1024*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			downloaded += int64(n)
			m.progress(name, float64(downloaded)/float64(total))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// DownloadDependencies fetches every missing base model.
func (m *Manager) DownloadDependencies() error {
	for _, model := range BaseModels {
		path := filepath.Join(m.modelsPath, strings.Trim(model.Path, "/"), model.Filename)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		if err := m.DownloadModel(model); err != nil {
			return fmt.Errorf("downloading %s: %w", model.Name, err)
		}
	}

	return nil
}
