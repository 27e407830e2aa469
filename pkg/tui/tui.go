// Package tui provides a terminal user interface for earquiz
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/james-see/earquiz/pkg/export"
	"github.com/james-see/earquiz/pkg/quiz"
)

// Graphic EQ faceplate colors
var (
	ledGreen   = lipgloss.Color("#39FF14")
	ledAmber   = lipgloss.Color("#FFB000")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ledGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ledGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(ledAmber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(ledGreen).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ledGreen).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateDrill
	StateFilePicker
	StateExporting
	StateResult
)

type action int

const (
	actionLearn action = iota
	actionTest
	actionLoad
	actionExport
	actionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	action      action
}

var menuItems = []MenuItem{
	{Title: "Learn", Description: "Walk the drill cycle with the answer shown", action: actionLearn},
	{Title: "Test", Description: "Random drills, scored at the end", action: actionTest},
	{Title: "Load exercise", Description: "Drill the bands of a .mid, .json or .txt exercise file", action: actionLoad},
	{Title: "Export", Description: "Write the drill cycle to a MIDI cue file", action: actionExport},
	{Title: "Exit", Description: "Exit the application", action: actionExit},
}

// Option configures a Model
type Option func(*Model)

// WithSeed makes drill generation deterministic
func WithSeed(seed int64) Option {
	return func(m *Model) {
		m.seed = &seed
	}
}

// WithOutputDir sets where exports are written. Defaults to the working directory.
func WithOutputDir(dir string) Option {
	return func(m *Model) {
		m.outputDir = dir
	}
}

// WithQuestions sets the length of test sessions
func WithQuestions(n int) Option {
	return func(m *Model) {
		m.questions = n
	}
}

// Model represents the TUI model
type Model struct {
	state     State
	menuIndex int

	cfg       drill.Config
	seed      *int64
	questions int
	outputDir string
	exporter  *export.Exporter

	session     *quiz.Session
	choices     []drill.Drill
	choiceIndex int
	last        *quiz.Attempt

	filePicker filepicker.Model
	spinner    spinner.Model
	outputFile string
	status     string
	err        error
	width      int
	height     int
}

// exportDoneMsg signals export completion
type exportDoneMsg struct {
	outputFile string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model drilling cfg
func New(cfg drill.Config, opts ...Option) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".json", ".txt"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ledGreen)

	m := Model{
		state:      StateMenu,
		cfg:        cfg,
		questions:  quiz.DefaultTestQuestions,
		outputDir:  ".",
		exporter:   export.New(),
		filePicker: fp,
		spinner:    s,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			return m.loadExercise(path)
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateDrill:
			return m.updateDrill(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exportDoneMsg:
		m.state = StateResult
		m.session = nil
		m.outputFile = msg.outputFile
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		switch menuItems[m.menuIndex].action {
		case actionLearn:
			return m.startSession(quiz.ModeLearn)
		case actionTest:
			return m.startSession(quiz.ModeTest)
		case actionLoad:
			m.state = StateFilePicker
			return m, m.filePicker.Init()
		case actionExport:
			m.state = StateExporting
			return m, tea.Batch(m.spinner.Tick, m.exportSequence())
		case actionExit:
			return m, tea.Quit
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) newGenerator() *drill.Generator {
	if m.seed != nil {
		return drill.New(m.cfg, drill.WithSeed(*m.seed))
	}
	return drill.New(m.cfg)
}

func (m Model) startSession(mode quiz.Mode) (tea.Model, tea.Cmd) {
	opts := quiz.Options{Mode: mode}
	if mode == quiz.ModeTest {
		opts.Questions = m.questions
	}
	session, err := quiz.NewSession(m.newGenerator(), opts)
	if err == nil {
		m.choices, err = session.Choices()
	}
	if err == nil {
		_, err = session.NextDrill()
	}
	if err != nil {
		m.state = StateResult
		m.session = nil
		m.err = err
		return m, nil
	}

	m.session = session
	m.choiceIndex = 0
	m.last = nil
	m.err = nil
	m.outputFile = ""
	m.state = StateDrill
	return m, nil
}

func (m Model) updateDrill(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.choiceIndex > 0 {
			m.choiceIndex--
		}
	case "down", "j":
		if m.choiceIndex < len(m.choices)-1 {
			m.choiceIndex++
		}
	case "enter":
		if m.last != nil {
			return m.nextDrill()
		}
		a, err := m.session.Answer(m.choices[m.choiceIndex])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.last = &a
		if m.session.Score().Complete {
			m.state = StateResult
		}
	case "n":
		return m.nextDrill()
	case "esc":
		m.state = StateResult
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) nextDrill() (tea.Model, tea.Cmd) {
	if _, err := m.session.NextDrill(); err != nil {
		m.err = err
		m.state = StateResult
		return m, nil
	}
	m.last = nil
	m.err = nil
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.session = nil
		m.last = nil
		m.err = nil
		m.status = ""
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// loadExercise replaces the drilled bands with those of an exercise file
// and starts a learn session over them
func (m Model) loadExercise(path string) (tea.Model, tea.Cmd) {
	drills, err := m.exporter.ReadFile(path)
	if err == nil {
		m.cfg, err = configFromDrills(m.cfg, drills)
	}
	if err != nil {
		m.state = StateResult
		m.session = nil
		m.err = fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
		return m, nil
	}
	next, cmd := m.startSession(quiz.ModeLearn)
	nm := next.(Model)
	nm.status = fmt.Sprintf("Loaded %s", filepath.Base(path))
	return nm, cmd
}

// configFromDrills keeps base but drills the bands used by drills
func configFromDrills(base drill.Config, drills []drill.Drill) (drill.Config, error) {
	if len(drills) == 0 {
		return drill.Config{}, export.ErrNoCues
	}
	cfg := base
	cfg.Bands = nil
	cfg.DualBand = false
	boost, cut := false, false
	for _, d := range drills {
		if d.Dual {
			cfg.DualBand = true
		}
		for _, b := range d.Bands() {
			if b.Boost() {
				boost = true
			} else {
				cut = true
			}
			if !slices.Contains(cfg.Bands, b.Abs()) {
				cfg.Bands = append(cfg.Bands, b.Abs())
			}
		}
	}
	switch {
	case boost && cut:
		cfg.BoostCut = drill.BoostAndCut
	case cut:
		cfg.BoostCut = drill.CutOnly
	default:
		cfg.BoostCut = drill.BoostOnly
	}
	return cfg, cfg.Validate()
}

func (m Model) exportSequence() tea.Cmd {
	return func() tea.Msg {
		seq, err := m.newGenerator().Generate()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		outputFile, err := export.UniquePath(filepath.Join(m.outputDir, "Exercise1.mid"))
		if err != nil {
			return exportDoneMsg{err: err}
		}
		if err := m.exporter.WriteFile(outputFile, "earquiz", seq); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{outputFile: outputFile}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateDrill:
		s.WriteString(m.viewDrill())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateExporting:
		s.WriteString(m.viewExporting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	switch m.state {
	case StateDrill:
		s.WriteString(helpStyle.Render("↑/↓: choose • enter: answer • n: skip • esc: finish • q: quit"))
	default:
		s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))
	}

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" EQ EAR TRAINING "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(ledAmber).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	s.WriteString(statusStyle.Render(fmt.Sprintf("Bands: %s", formatBands(m.cfg.Bands))))

	return boxStyle.Render(s.String())
}

func (m Model) viewDrill() string {
	var s strings.Builder

	score := m.session.Score()
	title := fmt.Sprintf(" %s • DRILL %d ", strings.ToUpper(string(m.session.Mode())), score.Asked)
	if q := m.session.Options().Questions; q > 0 {
		title = fmt.Sprintf(" %s • DRILL %d/%d ", strings.ToUpper(string(m.session.Mode())), score.Asked, q)
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
		s.WriteString("\n")
	}

	if current, ok := m.session.Current(); ok && m.session.Mode() == quiz.ModeLearn {
		s.WriteString(statusStyle.Render(fmt.Sprintf("Listen for: %s", current)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	for i, c := range m.choices {
		if i == m.choiceIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", c)))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", c)))
		}
		s.WriteString("\n")
	}

	if m.last != nil {
		s.WriteString("\n")
		if m.last.Correct {
			s.WriteString(successStyle.Render("✓ Correct"))
		} else {
			s.WriteString(errorStyle.Render(fmt.Sprintf("✗ It was %s", m.last.Drill)))
		}
		s.WriteString(helpStyle.Render("  enter: next drill"))
	}
	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(m.err.Error()))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT EXERCISE FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewExporting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" EXPORTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Writing drill cycle...\n", m.spinner.View()))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %d bands → MIDI", len(m.cfg.Bands))))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	switch {
	case m.err != nil:
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err.Error())))
	case m.outputFile != "":
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Export complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
	case m.session != nil:
		score := m.session.Score()
		s.WriteString(titleStyle.Render(" SCORE "))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Correct: %d/%d (%.0f%%)", score.Correct, score.Answered, score.Percent))
		if m.session.Mode() == quiz.ModeTest && score.Complete {
			s.WriteString("\n\n")
			if score.Passed {
				s.WriteString(successStyle.Render("✓ Passed"))
			} else {
				s.WriteString(errorStyle.Render("✗ Not passed"))
			}
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func formatBands(bands []drill.Band) string {
	labels := make([]string, len(bands))
	for i, b := range bands {
		labels[i] = drill.FormatBand(float64(b))
	}
	return strings.Join(labels, " ")
}

func asciiLogo() string {
	logo := `
   ___  __ _ _ __ __ _ _   _ (_)____
  / _ \/ _' | '__/ _' | | | || |_  /
 |  __/ (_| | | | (_| | |_| || |/ /
  \___|\__,_|_|  \__, |\__,_||_/___|
                    |_|
`
	return lipgloss.NewStyle().Foreground(ledGreen).Render(logo)
}

// Run starts the TUI application
func Run(cfg drill.Config, opts ...Option) error {
	p := tea.NewProgram(New(cfg, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
