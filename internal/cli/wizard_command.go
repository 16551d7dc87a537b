package cli

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"videostove/internal/job"
	"videostove/internal/media"
	"videostove/internal/model"
	"videostove/internal/preset"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type wizardStep int

const (
	wizardStepPreset wizardStep = iota
	wizardStepMode
	wizardStepProjects
	wizardStepOutput
	wizardStepDone
)

var wizardModes = []model.RenderMode{model.ModeSlideshow, model.ModeMontage, model.ModeVideosOnly}

type wizardProject struct {
	Name     string
	Images   int
	Videos   int
	Selected bool
}

type wizardModel struct {
	workRoot string
	jobPath  string

	step     wizardStep
	presets  []preset.Entry
	projects []wizardProject
	cursor   int

	presetIdx int
	modeIdx   int
	output    textinput.Model

	savedPath string
	statusMsg string
	fatalErr  error
}

type wizardLoadedMsg struct {
	presets  []preset.Entry
	projects []wizardProject
	err      error
}

type wizardSavedMsg struct {
	path string
	err  error
}

var (
	wizardTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	wizardMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	wizardErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	wizardOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	wizardSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	wizardPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	wizardMarkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func runWizard(args []string) error {
	fs := flag.NewFlagSet("wizard", flag.ContinueOnError)
	workRoot := fs.String("root", "work", "workspace root holding assets and projects")
	jobPath := fs.String("out", filepath.Join("jobs", "batch.yaml"), "job document to write")
	yes := fs.Bool("yes", false, "skip the interactive steps: first preset, all projects")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *yes {
		return runWizardAuto(strings.TrimSpace(*workRoot), strings.TrimSpace(*jobPath))
	}
	if !stdinIsTTY() {
		return errors.New("wizard requires an interactive terminal (TTY), or --yes")
	}

	input := textinput.New()
	input.SetValue(*jobPath)
	input.CharLimit = 200
	input.Width = 48

	m := wizardModel{
		workRoot: strings.TrimSpace(*workRoot),
		jobPath:  strings.TrimSpace(*jobPath),
		step:     wizardStepPreset,
		output:   input,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("wizard requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(wizardModel); ok {
		if fm.fatalErr != nil {
			return fm.fatalErr
		}
		if fm.savedPath != "" {
			fmt.Printf("wrote %s\n", fm.savedPath)
			fmt.Printf("next: videostove render-batch --job %s\n", fm.savedPath)
		}
	}
	return nil
}

// runWizardAuto is the --yes path: first preset, every project, no TTY.
func runWizardAuto(workRoot, jobPath string) error {
	presets, projects, err := loadWizardInputs(workRoot)
	if err != nil {
		return err
	}
	m := wizardModel{presets: presets, projects: projects}
	m.modeIdx = modeIndex(presets[0].Mode)
	for i := range m.projects {
		m.projects[i].Selected = true
	}
	if err := job.Save(jobPath, m.buildJob()); err != nil {
		return err
	}
	fmt.Printf("wrote %s (preset %s, %d projects)\n", jobPath, presets[0].Name, len(projects))
	fmt.Printf("next: videostove render-batch --job %s\n", jobPath)
	return nil
}

func (m wizardModel) Init() tea.Cmd {
	return loadWizardInputsCmd(m.workRoot)
}

func loadWizardInputs(workRoot string) ([]preset.Entry, []wizardProject, error) {
	searchPaths := preset.SearchPaths(workRoot)
	presets := preset.Find(searchPaths)
	if len(presets) == 0 {
		return nil, nil, fmt.Errorf("no presets under %s; run pull --shared-only first", workRoot)
	}

	projectsRoot := filepath.Join(workRoot, "projects")
	names, err := projectDirNames(projectsRoot)
	if err != nil {
		names, err = projectDirNames(".")
		if err != nil {
			return nil, nil, err
		}
		projectsRoot = "."
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no project directories under %s; run pull first", projectsRoot)
	}

	projects := make([]wizardProject, 0, len(names))
	for _, name := range names {
		scan := media.Scan(filepath.Join(projectsRoot, name))
		projects = append(projects, wizardProject{
			Name:   name,
			Images: scan.ImageCount,
			Videos: scan.VideoCount,
		})
	}
	return presets, projects, nil
}

func loadWizardInputsCmd(workRoot string) tea.Cmd {
	return func() tea.Msg {
		presets, projects, err := loadWizardInputs(workRoot)
		if err != nil {
			return wizardLoadedMsg{err: err}
		}
		return wizardLoadedMsg{presets: presets, projects: projects}
	}
}

func saveJobCmd(path string, j model.Job) tea.Cmd {
	return func() tea.Msg {
		if err := job.Save(path, j); err != nil {
			return wizardSavedMsg{err: err}
		}
		return wizardSavedMsg{path: path}
	}
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wizardLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.presets = msg.presets
		m.projects = msg.projects
		return m, nil

	case wizardSavedMsg:
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
			m.step = wizardStepOutput
			return m, nil
		}
		m.savedPath = msg.path
		m.step = wizardStepDone
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.step == wizardStepOutput {
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || (key == "q" && m.step != wizardStepOutput) {
		return m, tea.Quit
	}

	switch m.step {
	case wizardStepPreset:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.presets)-1 {
				m.cursor++
			}
		case "enter":
			m.presetIdx = m.cursor
			m.modeIdx = modeIndex(m.presets[m.presetIdx].Mode)
			m.cursor = m.modeIdx
			m.step = wizardStepMode
		}

	case wizardStepMode:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(wizardModes)-1 {
				m.cursor++
			}
		case "enter":
			m.modeIdx = m.cursor
			m.cursor = 0
			m.step = wizardStepProjects
		}

	case wizardStepProjects:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.projects)-1 {
				m.cursor++
			}
		case " ":
			m.projects[m.cursor].Selected = !m.projects[m.cursor].Selected
		case "a":
			for i := range m.projects {
				m.projects[i].Selected = true
			}
		case "enter":
			if m.selectedCount() == 0 {
				m.statusMsg = "select at least one project (space toggles, a selects all)"
				return m, nil
			}
			m.statusMsg = ""
			m.step = wizardStepOutput
			m.output.Focus()
			return m, textinput.Blink
		}

	case wizardStepOutput:
		switch key {
		case "esc":
			m.output.Blur()
			m.step = wizardStepProjects
			return m, nil
		case "enter":
			path := strings.TrimSpace(m.output.Value())
			if path == "" {
				m.statusMsg = "output path is required"
				return m, nil
			}
			return m, saveJobCmd(path, m.buildJob())
		default:
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m wizardModel) buildJob() model.Job {
	j := model.Job{
		PresetRef: m.presets[m.presetIdx].Name,
		Mode:      wizardModes[m.modeIdx],
	}
	for _, p := range m.projects {
		if p.Selected {
			j.Projects = append(j.Projects, model.ProjectRef{
				Name:         p.Name,
				OutputTarget: "outputs/" + p.Name,
			})
		}
	}
	return j
}

func (m wizardModel) selectedCount() int {
	n := 0
	for _, p := range m.projects {
		if p.Selected {
			n++
		}
	}
	return n
}

func modeIndex(mode model.RenderMode) int {
	for i, candidate := range wizardModes {
		if candidate == mode {
			return i
		}
	}
	return 0
}

func (m wizardModel) View() string {
	if m.fatalErr != nil {
		return wizardErrorStyle.Render("error: "+m.fatalErr.Error()) + "\n"
	}
	if len(m.presets) == 0 {
		return wizardMutedStyle.Render("loading presets and projects...") + "\n"
	}

	var b strings.Builder
	b.WriteString(wizardTitleStyle.Render("videostove wizard") + "\n\n")

	switch m.step {
	case wizardStepPreset:
		b.WriteString("Pick a preset:\n")
		for i, p := range m.presets {
			line := fmt.Sprintf("%-28s %s", p.Name, p.Mode)
			if i == m.cursor {
				line = wizardSelStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n" + wizardMutedStyle.Render("up/down move, enter select, q quit"))

	case wizardStepMode:
		b.WriteString("Pick a render mode (preset suggests " + string(m.presets[m.presetIdx].Mode) + "):\n")
		for i, mode := range wizardModes {
			line := string(mode)
			if i == m.cursor {
				line = wizardSelStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n" + wizardMutedStyle.Render("up/down move, enter select, q quit"))

	case wizardStepProjects:
		b.WriteString("Select projects:\n")
		for i, p := range m.projects {
			marker := "[ ]"
			if p.Selected {
				marker = wizardMarkedStyle.Render("[x]")
			}
			line := fmt.Sprintf("%s %-24s img:%d vid:%d", marker, p.Name, p.Images, p.Videos)
			if i == m.cursor {
				line = wizardSelStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n" + wizardMutedStyle.Render("space toggle, a all, enter continue, q quit"))

	case wizardStepOutput:
		b.WriteString("Job document path:\n")
		b.WriteString(wizardPanelStyle.Render(m.output.View()) + "\n")
		b.WriteString(wizardMutedStyle.Render("enter save, esc back"))

	case wizardStepDone:
		b.WriteString(wizardOKStyle.Render("saved " + m.savedPath))
	}

	if m.statusMsg != "" {
		b.WriteString("\n\n" + wizardErrorStyle.Render(m.statusMsg))
	}
	b.WriteString("\n")
	return b.String()
}
