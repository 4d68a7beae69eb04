// Package onboarding is the interactive setup wizard. It walks through
// provider, model, and archive endpoint selection and writes the config
// file the backend boots from.
package onboarding

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crafty/internal/config"
)

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle   = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			Bold(true)
	docStyle = lipgloss.NewStyle().Padding(1, 2)
)

type state int

const (
	stateProvider state = iota
	stateAPIKey
	stateModel
	stateArchive
	stateDone
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type Model struct {
	state      state
	configPath string

	provider   string
	model      string
	apiKey     string
	baseURL    string
	archiveURL string

	list     list.Model
	input    textinput.Model
	err      error
	quitting bool
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func fetchOllamaModels() []list.Item {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://localhost:11434/api/tags")
	if err != nil {
		return []list.Item{item{title: "llama3.2", desc: "Default fallback (Ollama not responding)"}}
	}
	defer resp.Body.Close()

	var data ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return []list.Item{item{title: "llama3.2", desc: "Error parsing models"}}
	}
	items := make([]list.Item, len(data.Models))
	for i, m := range data.Models {
		items[i] = item{title: m.Name, desc: "Local Ollama model"}
	}
	return items
}

func NewModel(configPath string) Model {
	providers := []list.Item{
		item{title: "ollama", desc: "Local execution via Ollama"},
		item{title: "openai", desc: "OpenAI or any compatible endpoint (requires API key)"},
	}

	l := list.New(providers, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select model provider"
	l.SetShowHelp(false)

	ti := textinput.New()
	ti.Focus()

	return Model{
		state:      stateProvider,
		configPath: configPath,
		list:       l,
		input:      ti,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-8, msg.Height-10)
	}

	var cmd tea.Cmd

	switch m.state {
	case stateProvider:
		m.list, cmd = m.list.Update(msg)
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
			if i, ok := m.list.SelectedItem().(item); ok {
				m.provider = i.title
				if m.provider == "ollama" {
					m.baseURL = "http://localhost:11434"
					m.list.SetItems(fetchOllamaModels())
					m.list.Title = "Select local model"
					m.state = stateModel
				} else {
					m.input.Prompt = "OpenAI API key: "
					m.input.EchoMode = textinput.EchoPassword
					m.state = stateAPIKey
				}
			}
		}

	case stateAPIKey:
		m.input, cmd = m.input.Update(msg)
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
			m.apiKey = m.input.Value()
			m.list.SetItems([]list.Item{
				item{title: "gpt-4o", desc: "Tool calling + enforced structured output"},
				item{title: "gpt-4o-mini", desc: "Fast, tool calling + enforced structured output"},
			})
			m.list.Title = "Select model"
			m.state = stateModel
		}

	case stateModel:
		m.list, cmd = m.list.Update(msg)
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
			if i, ok := m.list.SelectedItem().(item); ok {
				m.model = i.title
				m.input.Prompt = "Caption archive URL (optional): "
				m.input.EchoMode = textinput.EchoNormal
				m.input.SetValue("")
				m.state = stateArchive
			}
		}

	case stateArchive:
		m.input, cmd = m.input.Update(msg)
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
			m.archiveURL = strings.TrimSpace(m.input.Value())
			m.err = m.save()
			m.state = stateDone
			return m, tea.Quit
		}
	}

	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case stateProvider, stateModel:
		return docStyle.Render(m.list.View())
	case stateAPIKey, stateArchive:
		return docStyle.Render(
			titleStyle.Render("Crafty setup") + "\n\n" +
				m.input.View() + "\n\n" +
				helpStyle.Render("enter to continue, ctrl+c to quit"),
		)
	case stateDone:
		if m.err != nil {
			return docStyle.Render(fmt.Sprintf("Failed to save config: %v\n", m.err))
		}
		return docStyle.Render(focusedStyle.Render("Saved ") + m.configPath + "\n")
	}
	return ""
}

func (m Model) save() error {
	cfg := config.Default()
	cfg.Provider = m.provider
	cfg.Model = m.model
	cfg.BaseURL = m.baseURL
	cfg.APIKey = m.apiKey
	cfg.CaptionSearchURL = m.archiveURL
	return cfg.Save(m.configPath)
}

// Run starts the wizard and blocks until it finishes.
func Run(configPath string) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	p := tea.NewProgram(NewModel(configPath))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
