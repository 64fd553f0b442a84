// Package tui implements the interactive provider and agent picker.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/perch/internal/catalog"
	"github.com/soyeahso/perch/internal/selection"
)

// stage is the picker step currently on screen.
type stage int

const (
	stageProvider stage = iota
	stageChatAgent
	stageCommandAgent
	stageDone
)

// Result is what the picker produced once the program exits.
type Result struct {
	Provider     string
	ChatAgent    string
	CommandAgent string
	Cancelled    bool
}

// Picker walks through provider, chat agent and command agent choices.
type Picker struct {
	avail   catalog.Availability
	current selection.Snapshot

	stage  stage
	picks  list.Model
	result Result

	width  int
	height int
}

// pickItem wraps a choice for the list display.
type pickItem struct {
	id     string
	detail string
}

func (i pickItem) Title() string       { return i.id }
func (i pickItem) Description() string { return i.detail }
func (i pickItem) FilterValue() string { return i.id }

// New creates a picker over the given availability. The current snapshot is
// used to preselect and annotate what is already chosen.
func New(avail catalog.Availability, current selection.Snapshot) *Picker {
	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)
	delegate.SetSpacing(0)
	picks := list.New([]list.Item{}, delegate, 0, 0)
	picks.Title = "Select a Provider"
	picks.SetShowStatusBar(false)
	picks.SetFilteringEnabled(true)

	p := &Picker{
		avail:   avail,
		current: current,
		stage:   stageProvider,
		picks:   picks,
	}
	p.loadProviderItems()
	return p
}

// Init implements tea.Model.
func (p *Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		listWidth := msg.Width - 4
		if listWidth < 20 {
			listWidth = msg.Width
		}
		listHeight := msg.Height - 6
		if listHeight < 5 {
			listHeight = msg.Height - 2
		}
		p.picks.SetSize(listWidth, listHeight)
		return p, nil

	case tea.KeyMsg:
		// While filtering, keys belong to the filter input
		if p.picks.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			p.result.Cancelled = true
			return p, tea.Quit
		case "esc":
			if p.stage == stageProvider {
				p.result.Cancelled = true
				return p, tea.Quit
			}
			p.back()
			return p, nil
		case "enter":
			return p.choose()
		}
	}

	var cmd tea.Cmd
	p.picks, cmd = p.picks.Update(msg)
	return p, cmd
}

// View implements tea.Model.
func (p *Picker) View() string {
	if p.stage == stageDone {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#6BCB77")).
		MarginBottom(1)

	hintStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1)

	header := titleStyle.Render(p.headerText())
	footer := hintStyle.Render("enter choose · esc back · q quit")
	return fmt.Sprintf("%s\n%s\n%s", header, p.picks.View(), footer)
}

// Result returns the outcome after the program finished.
func (p *Picker) Result() Result {
	return p.result
}

func (p *Picker) headerText() string {
	switch p.stage {
	case stageChatAgent:
		return fmt.Sprintf("⬡ CHAT AGENT · %s", p.result.Provider)
	case stageCommandAgent:
		return fmt.Sprintf("⬡ COMMAND AGENT · %s", p.result.Provider)
	default:
		return "⬡ SELECT PROVIDER"
	}
}

// choose records the highlighted item and advances to the next stage.
func (p *Picker) choose() (tea.Model, tea.Cmd) {
	item, ok := p.picks.SelectedItem().(pickItem)
	if !ok {
		return p, nil
	}

	switch p.stage {
	case stageProvider:
		p.result.Provider = item.id
		return p.enterStage(stageChatAgent)
	case stageChatAgent:
		p.result.ChatAgent = item.id
		return p.enterStage(stageCommandAgent)
	case stageCommandAgent:
		p.result.CommandAgent = item.id
		return p.enterStage(stageDone)
	}
	return p, nil
}

// enterStage moves forward, skipping agent stages with nothing to offer.
func (p *Picker) enterStage(next stage) (tea.Model, tea.Cmd) {
	agents := p.avail.Agents[p.result.Provider]
	for next != stageDone {
		if next == stageChatAgent && len(agents.Chat) > 0 {
			break
		}
		if next == stageCommandAgent && len(agents.Command) > 0 {
			break
		}
		next++
	}

	p.stage = next
	if next == stageDone {
		return p, tea.Quit
	}
	p.loadAgentItems()
	return p, nil
}

// back returns to the previous stage, dropping the choice made there.
func (p *Picker) back() {
	agents := p.avail.Agents[p.result.Provider]
	if p.stage == stageCommandAgent && len(agents.Chat) > 0 {
		p.result.ChatAgent = ""
		p.stage = stageChatAgent
		p.loadAgentItems()
		return
	}
	p.result.Provider = ""
	p.result.ChatAgent = ""
	p.stage = stageProvider
	p.loadProviderItems()
}

func (p *Picker) loadProviderItems() {
	items := make([]list.Item, len(p.avail.Providers))
	selected := 0
	for i, id := range p.avail.Providers {
		detail := p.providerDetail(id)
		if id == p.current.Provider {
			detail = "active · " + detail
			selected = i
		}
		items[i] = pickItem{id: id, detail: detail}
	}
	p.picks.Title = "Select a Provider"
	p.picks.SetItems(items)
	p.picks.Select(selected)
	p.picks.ResetFilter()
}

func (p *Picker) loadAgentItems() {
	agents := p.avail.Agents[p.result.Provider]
	role := selection.RoleChat
	names := agents.Chat
	title := "Select a Chat Agent"
	if p.stage == stageCommandAgent {
		role = selection.RoleCommand
		names = agents.Command
		title = "Select a Command Agent"
	}

	current := p.current.Entries[p.result.Provider].Agent(role)
	items := make([]list.Item, len(names))
	selected := 0
	for i, name := range names {
		detail := string(role) + " agent"
		if name == current {
			detail = "current · " + detail
			selected = i
		}
		items[i] = pickItem{id: name, detail: detail}
	}
	p.picks.Title = title
	p.picks.SetItems(items)
	p.picks.Select(selected)
	p.picks.ResetFilter()
}

func (p *Picker) providerDetail(id string) string {
	agents := p.avail.Agents[id]
	parts := make([]string, 0, 2)
	if n := len(agents.Chat); n > 0 {
		parts = append(parts, fmt.Sprintf("%d chat", n))
	}
	if n := len(agents.Command); n > 0 {
		parts = append(parts, fmt.Sprintf("%d command", n))
	}
	if len(parts) == 0 {
		return "no agents discovered"
	}
	return strings.Join(parts, ", ") + " agents"
}

// Run starts the picker program on the terminal and blocks until a choice is
// made or the user bails out.
func Run(avail catalog.Availability, current selection.Snapshot) (Result, error) {
	if len(avail.Providers) == 0 {
		return Result{}, fmt.Errorf("no providers available to pick from")
	}

	program := tea.NewProgram(New(avail, current), tea.WithAltScreen())
	model, err := program.Run()
	if err != nil {
		return Result{}, fmt.Errorf("running picker: %w", err)
	}

	picker, ok := model.(*Picker)
	if !ok {
		return Result{}, fmt.Errorf("unexpected picker model %T", model)
	}
	return picker.Result(), nil
}
