package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Run walks the user through tokens, the models directory, the checkpoint
// choice and the downloads, then persists everything to the .env file.
func Run(envFile string) error {
	progressCh := make(chan progressMsg, 16)

	manager := NewManager(Config{
		EnvFile: envFile,
		Progress: func(name string, fraction float64) {
			select {
			case progressCh <- progressMsg{name: name, fraction: fraction}:
			default:
			}
		},
	})

	wizard := newWizard(manager, progressCh)

	final, err := tea.NewProgram(wizard).Run()
	if err != nil {
		return err
	}

	if w, ok := final.(*wizardModel); ok {
		return w.err
	}

	return nil
}

const (
	stepHFToken = iota
	stepCivitAIToken
	stepModelsPath
	stepCheckpoint
	stepDownloading
	stepDone
)

type progressMsg struct {
	name     string
	fraction float64
}

type downloadsDoneMsg struct {
	err error
}

type wizardModel struct {
	manager    *Manager
	progressCh chan progressMsg

	step   int
	input  textinput.Model
	cursor int

	hfToken      string
	civitaiToken string
	modelsPath   string
	checkpoint   ModelFile

	bar         progress.Model
	downloading string
	percent     float64

	status string
	err    error
}

func newWizard(manager *Manager, progressCh chan progressMsg) *wizardModel {
	input := textinput.New()
	input.Placeholder = "hf_..."
	input.Focus()

	return &wizardModel{
		manager:    manager,
		progressCh: progressCh,
		input:      input,
		bar:        progress.New(progress.WithDefaultGradient()),
	}
}

func (w *wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (w *wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if w.step != stepDownloading {
				w.err = fmt.Errorf("setup cancelled")
				return w, tea.Quit
			}
		case tea.KeyEnter:
			return w.advance()
		case tea.KeyUp:
			if w.step == stepCheckpoint && w.cursor > 0 {
				w.cursor--
			}
		case tea.KeyDown:
			if w.step == stepCheckpoint && w.cursor < len(Checkpoints)-1 {
				w.cursor++
			}
		}
	case tea.WindowSizeMsg:
		w.bar.Width = min(msg.Width-4, 60)
	case progressMsg:
		w.downloading = msg.name
		w.percent = msg.fraction
		return w, w.listenProgress()
	case downloadsDoneMsg:
		if msg.err != nil {
			w.err = msg.err
			return w, tea.Quit
		}
		w.step = stepDone
		return w, tea.Quit
	}

	if w.step <= stepModelsPath {
		var cmd tea.Cmd
		w.input, cmd = w.input.Update(msg)
		return w, cmd
	}

	return w, nil
}

// advance validates the current step's answer and moves to the next one.
func (w *wizardModel) advance() (tea.Model, tea.Cmd) {
	switch w.step {
	case stepHFToken:
		token := strings.TrimSpace(w.input.Value())
		if !w.manager.ValidateHuggingFaceToken(token) {
			w.status = "Invalid Hugging Face token. Please try again."
			return w, nil
		}
		w.hfToken = token
		w.step = stepCivitAIToken
		w.status = ""
		w.input.SetValue("")
		w.input.Placeholder = "CivitAI API token"
	case stepCivitAIToken:
		token := strings.TrimSpace(w.input.Value())
		if !w.manager.ValidateCivitAIToken(token) {
			w.status = "Invalid CivitAI token. Please try again."
			return w, nil
		}
		w.civitaiToken = token
		w.step = stepModelsPath
		w.status = ""
		w.input.SetValue("")
		w.input.Placeholder = "/path/to/ComfyUI/models"
	case stepModelsPath:
		path := strings.TrimSpace(w.input.Value())
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			w.status = "Directory does not exist. Please try again."
			return w, nil
		}
		w.modelsPath = path
		w.step = stepCheckpoint
		w.status = ""
	case stepCheckpoint:
		w.checkpoint = Checkpoints[w.cursor]
		w.step = stepDownloading
		return w, tea.Batch(w.startDownloads(), w.listenProgress())
	}

	return w, nil
}

func (w *wizardModel) startDownloads() tea.Cmd {
	manager := w.manager
	manager.SetTokens(w.hfToken, w.civitaiToken)
	manager.SetModelsPath(w.modelsPath)
	checkpoint := w.checkpoint

	return func() tea.Msg {
		if err := manager.SaveTokens(w.hfToken, w.civitaiToken); err != nil {
			return downloadsDoneMsg{err: err}
		}
		if err := manager.SaveModelsPath(w.modelsPath); err != nil {
			return downloadsDoneMsg{err: err}
		}
		if err := manager.DownloadDependencies(); err != nil {
			return downloadsDoneMsg{err: err}
		}
		if err := manager.DownloadModel(checkpoint); err != nil {
			return downloadsDoneMsg{err: err}
		}
		if err := manager.SaveWorkflow(checkpoint.Workflow); err != nil {
			return downloadsDoneMsg{err: err}
		}
		return downloadsDoneMsg{}
	}
}

func (w *wizardModel) listenProgress() tea.Cmd {
	return func() tea.Msg {
		return <-w.progressCh
	}
}

func (w *wizardModel) View() string {
	var b strings.Builder

	b.WriteString("\n  Flux ComfyUI bot setup\n\n")

	switch w.step {
	case stepHFToken:
		b.WriteString("  Enter your Hugging Face token (starts with 'hf_'):\n\n")
		b.WriteString("  " + w.input.View() + "\n")
	case stepCivitAIToken:
		b.WriteString("  Enter your CivitAI token:\n\n")
		b.WriteString("  " + w.input.View() + "\n")
	case stepModelsPath:
		b.WriteString("  Enter your ComfyUI models directory:\n\n")
		b.WriteString("  " + w.input.View() + "\n")
	case stepCheckpoint:
		b.WriteString("  Select a checkpoint to download:\n\n")
		for i, checkpoint := range Checkpoints {
			cursor := "  "
			if i == w.cursor {
				cursor = "> "
			}
			b.WriteString(fmt.Sprintf("  %s%s\n", cursor, checkpoint.Name))
		}
	case stepDownloading:
		b.WriteString(fmt.Sprintf("  Downloading %s...\n\n", w.downloading))
		b.WriteString("  " + w.bar.ViewAs(w.percent) + "\n")
	case stepDone:
		b.WriteString("  Setup completed successfully!\n")
	}

	if w.status != "" {
		b.WriteString("\n  " + w.status + "\n")
	}
	b.WriteString("\n  (esc to cancel)\n")

	return b.String()
}
