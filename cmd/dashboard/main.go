// Command dashboard is a read-only terminal view of a running bot. It
// talks to the bot's control server over HTTP, so it can run from any
// box that can reach the bot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MuditaSai/weather/internal/ledger"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	profitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

type hedgeView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Cost   int    `json:"total_cost"`
}

type positionsPayload struct {
	Hedges []hedgeView `json:"hedges"`
}

type refreshMsg struct {
	summary   *ledger.Summary
	positions []hedgeView
	err       error
}

type tickMsg time.Time

type model struct {
	baseURL   string
	summary   *ledger.Summary
	positions []hedgeView
	err       error
	updated   time.Time
}

func fetchJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func refresh(baseURL string) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 10 * time.Second}
		var summary ledger.Summary
		if err := fetchJSON(client, baseURL+"/api/summary", &summary); err != nil {
			return refreshMsg{err: err}
		}
		var positions positionsPayload
		if err := fetchJSON(client, baseURL+"/api/positions", &positions); err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{summary: &summary, positions: positions.Hedges}
	}
}

func tick() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refresh(m.baseURL), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, refresh(m.baseURL)
		}
	case tickMsg:
		return m, tea.Batch(refresh(m.baseURL), tick())
	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.summary = msg.summary
		m.positions = msg.positions
		m.updated = time.Now()
	}
	return m, nil
}

func money(cents int) string {
	s := "$" + ledger.Dollars(cents)
	if cents < 0 {
		return lossStyle.Render(s)
	}
	if cents > 0 {
		return profitStyle.Render(s)
	}
	return s
}

func (m model) View() string {
	out := headerStyle.Render("weather hedge dashboard") + "\n\n"
	if m.err != nil {
		out += lossStyle.Render("connection failed: "+m.err.Error()) + "\n"
		out += dimStyle.Render("r to retry, q to quit") + "\n"
		return out
	}
	if m.summary == nil {
		return out + dimStyle.Render("loading...") + "\n"
	}

	s := m.summary
	perf := fmt.Sprintf(
		"wins %d  losses %d  derisked %d  open %d\nnet %s   invested $%s",
		s.Wins, s.Losses, s.Derisked, s.Open,
		money(s.Net), ledger.Dollars(s.TotalInvested),
	)
	out += sectionStyle.Render("Performance") + "\n" + borderStyle.Render(perf) + "\n\n"

	out += sectionStyle.Render("Hedges") + "\n"
	if len(m.positions) == 0 {
		out += dimStyle.Render("  (none)") + "\n"
	}
	for _, h := range m.positions {
		out += fmt.Sprintf("  %-32s %-10s $%s\n", h.ID, h.Status, ledger.Dollars(h.Cost))
	}

	if len(s.Days) > 0 {
		out += "\n" + sectionStyle.Render("By market date") + "\n"
		for _, d := range s.Days {
			out += fmt.Sprintf("  %s  W%d L%d D%d  net %s\n",
				d.MarketDate, d.Wins, d.Losses, d.Derisked, money(d.Net))
		}
	}

	out += "\n" + dimStyle.Render(fmt.Sprintf("updated %s — r refresh, q quit", m.updated.Format("15:04:05")))
	return out + "\n"
}

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:8090", "bot control server address")
	flag.Parse()

	p := tea.NewProgram(model{baseURL: *baseURL})
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
}
