package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// quotedKeys are written back with quotes, matching how the shipped .env
// documents them.
var quotedKeys = map[string]bool{
	"BOT_SERVER":     true,
	"server_address": true,
	"fluxversion":    true,
}

// LoadEnv reads the .env file into a map. A missing file is an empty map,
// not an error.
func (m *Manager) LoadEnv() (map[string]string, error) {
	if _, err := os.Stat(m.envFile); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	return godotenv.Read(m.envFile)
}

// SaveEnv writes values back to the .env file, updating lines in place so
// comments and ordering survive. New keys are appended.
func (m *Manager) SaveEnv(envVars map[string]string) error {
	var existing []string
	if data, err := os.ReadFile(m.envFile); err == nil {
		existing = strings.Split(string(data), "\n")
		if len(existing) > 0 && existing[len(existing)-1] == "" {
			existing = existing[:len(existing)-1]
		}
	}

	var lines []string
	updated := make(map[string]bool)

	for _, line := range existing {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			lines = append(lines, line)
			continue
		}

		key, _, found := strings.Cut(trimmed, "=")
		key = strings.TrimSpace(key)
		if !found {
			lines = append(lines, line)
			continue
		}

		value, ok := envVars[key]
		if !ok {
			lines = append(lines, line)
			continue
		}

		var comment string
		if idx := strings.Index(line, "#"); idx >= 0 {
			comment = " " + line[idx:]
		}
		lines = append(lines, formatEnvLine(key, value)+comment)
		updated[key] = true
	}

	for key, value := range envVars {
		if !updated[key] {
			lines = append(lines, formatEnvLine(key, value))
		}
	}

	return os.WriteFile(m.envFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func formatEnvLine(key, value string) string {
	if quotedKeys[key] {
		return fmt.Sprintf("%s=%q", key, strings.ReplaceAll(value, `"`, ""))
	}
	return fmt.Sprintf("%s=%s", key, value)
}

// SaveTokens persists validated API tokens.
func (m *Manager) SaveTokens(hfToken, civitaiToken string) error {
	envVars, err := m.LoadEnv()
	if err != nil {
		return err
	}

	envVars["HUGGINGFACE_TOKEN"] = hfToken
	envVars["CIVITAI_API_TOKEN"] = civitaiToken

	return m.SaveEnv(envVars)
}

// SaveWorkflow records the workflow JSON matching the downloaded checkpoint.
func (m *Manager) SaveWorkflow(workflowFile string) error {
	envVars, err := m.LoadEnv()
	if err != nil {
		return err
	}

	envVars["fluxversion"] = workflowFile

	return m.SaveEnv(envVars)
}

// SaveModelsPath records where the ComfyUI models live.
func (m *Manager) SaveModelsPath(path string) error {
	envVars, err := m.LoadEnv()
	if err != nil {
		return err
	}

	envVars["COMFYUI_MODELS_PATH"] = path

	return m.SaveEnv(envVars)
}
