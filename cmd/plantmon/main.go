// plantmon is a terminal cockpit for a running plantbusd instance. It polls
// the line registers over Modbus TCP, renders them in a table, and lets the
// operator toggle coils and adjust rate registers from the keyboard.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-plantbus/config"
	"github.com/arloliu/go-plantbus/internal/util"
	"github.com/arloliu/go-plantbus/mbtcp"
)

const pollPeriod = 500 * time.Millisecond

var (
	serverAddress string
	configPath    string
)

var rootCmd = &cobra.Command{
	Use:           "plantmon",
	Short:         "terminal cockpit for the bottling line registers",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&serverAddress, "address", "a", "127.0.0.1:5502", "plantbusd Modbus TCP address")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "line configuration file, for the register layout")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	client, err := mbtcp.Dial(serverAddress, 2*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	m := newModel(client, cfg)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run cockpit: %w", err)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plantmon:", err)
		os.Exit(1)
	}
}

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#909090",
		Dark:  "#626262",
	}).Padding(0, 1)

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

// point is one register the cockpit watches: a coil, a holding register, or a
// discrete input belonging to a named piece of line equipment.
type point struct {
	name    string
	space   string
	address uint16

	coil  bool
	value uint16
}

// snapshotMsg carries one complete poll of all points.
type snapshotMsg struct {
	points []point
	err    error
}

type tickMsg time.Time

type model struct {
	client *mbtcp.Client
	points []point
	table  table.Model

	lastErr   error
	polledAt  time.Time
	connected bool
}

func newModel(client *mbtcp.Client, cfg config.Config) model {
	points := []point{
		{name: "conveyor", space: "coil", address: cfg.Conveyor.Coil},
		{name: "conveyor speed", space: "holding", address: cfg.Conveyor.Holding},
		{name: "valve", space: "coil", address: cfg.Valve.Coil},
		{name: "valve rate", space: "holding", address: cfg.Valve.Holding},
	}
	for _, s := range cfg.Sensors {
		points = append(points, point{name: s.Tag, space: "discrete", address: s.Address})
	}

	columns := []table.Column{
		{Title: "Point", Width: 18},
		{Title: "Space", Width: 10},
		{Title: "Address", Width: 8},
		{Title: "Value", Width: 8},
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)

	tbl := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(points)+1),
		table.WithFocused(true),
	)
	tbl.SetStyles(styles)

	return model{client: client, points: points, table: tbl}
}

func (m model) Init() tea.Cmd {
	return m.pollCmd()
}

// pollCmd reads every watched point in one command so the Update loop never
// blocks on the network.
func (m model) pollCmd() tea.Cmd {
	client := m.client
	points := util.CloneSlice(m.points, 0)

	return func() tea.Msg {
		for i := range points {
			p := &points[i]

			switch p.space {
			case "coil":
				values, err := client.ReadCoils(p.address, 1)
				if err != nil {
					return snapshotMsg{err: err}
				}
				p.coil = values[0]
			case "discrete":
				values, err := client.ReadDiscreteInputs(p.address, 1)
				if err != nil {
					return snapshotMsg{err: err}
				}
				p.coil = values[0]
			case "holding":
				values, err := client.ReadHoldingRegisters(p.address, 1)
				if err != nil {
					return snapshotMsg{err: err}
				}
				p.value = values[0]
			}
		}

		return snapshotMsg{points: points}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.connected = false
		} else {
			m.points = msg.points
			m.lastErr = nil
			m.connected = true
			m.polledAt = time.Now()
		}
		m.table.SetRows(m.rows())

		return m, tickCmd()

	case tickMsg:
		return m, m.pollCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter", " ":
			return m, m.toggleCmd()
		case "+", "=":
			return m, m.adjustCmd(10)
		case "-":
			return m, m.adjustCmd(-10)
		}

		m.table, cmd = m.table.Update(msg)

		return m, cmd
	}

	return m, nil
}

// toggleCmd flips the selected coil. Discrete inputs and holding registers are
// left alone.
func (m model) toggleCmd() tea.Cmd {
	if m.table.Cursor() >= len(m.points) {
		return nil
	}

	p := m.points[m.table.Cursor()]
	if p.space != "coil" {
		return nil
	}

	client := m.client

	return func() tea.Msg {
		if err := client.WriteSingleCoil(p.address, !p.coil); err != nil {
			return snapshotMsg{err: err}
		}

		return tickMsg(time.Now())
	}
}

// adjustCmd shifts the selected holding register by delta, clamped to the
// uint16 range.
func (m model) adjustCmd(delta int) tea.Cmd {
	if m.table.Cursor() >= len(m.points) {
		return nil
	}

	p := m.points[m.table.Cursor()]
	if p.space != "holding" {
		return nil
	}

	next := int(p.value) + delta
	if next < 0 {
		next = 0
	}
	if next > 0xFFFF {
		next = 0xFFFF
	}

	client := m.client

	return func() tea.Msg {
		if err := client.WriteSingleRegister(p.address, uint16(next)); err != nil {
			return snapshotMsg{err: err}
		}

		return tickMsg(time.Now())
	}
}

func (m model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.points))
	for _, p := range m.points {
		value := fmt.Sprintf("%d", p.value)
		if p.space != "holding" {
			if p.coil {
				value = "ON"
			} else {
				value = "off"
			}
		}

		rows = append(rows, table.Row{p.name, p.space, fmt.Sprintf("0x%04X", p.address), value})
	}

	return rows
}

func (m model) View() string {
	status := helpStyle.Render(fmt.Sprintf("%s • polled %s", serverAddress, m.polledAt.Format("15:04:05")))
	if !m.connected {
		status = errStyle.Render(fmt.Sprintf("%s • %v", serverAddress, m.lastErr))
	}

	help := helpStyle.Render("enter/space - toggle coil • +/- - adjust register • q - quit")

	return lipgloss.JoinVertical(lipgloss.Top, baseStyle.Render(m.table.View()), status, help) + "\n"
}
