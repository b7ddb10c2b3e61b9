package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/report"
)

// SortField selects the active sort order for the results table.
type SortField int

// Sort orders for the results browser.
const (
	SortByCO2e SortField = iota
	SortByActivity
	SortByScope
	numSortFields
)

// ResultsModel is the Bubble Tea model for browsing an emissions result.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type ResultsModel struct {
	result  *engine.Result
	allRows []engine.RowResult
	rows    []engine.RowResult

	table     table.Model
	textInput textinput.Model
	selected  int

	state      ViewState
	sortBy     SortField
	showFilter bool
	width      int
	height     int
}

// NewResultsModel creates a results browser over a computed result. The
// rows are copied: sorting and filtering never reorder the caller's
// result.
func NewResultsModel(result *engine.Result) ResultsModel {
	allRows := append([]engine.RowResult(nil), result.Rows...)
	m := ResultsModel{
		result:    result,
		allRows:   allRows,
		rows:      allRows,
		state:     ViewStateList,
		sortBy:    SortByCO2e,
		textInput: newTextInput(),
		width:     defaultWidth,
		height:    defaultHeight,
	}
	m.refreshTable()
	return m
}

// Init initializes the model (Bubble Tea interface).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if winMsg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = winMsg.Width
		m.height = winMsg.Height
		m.refreshTable()
		return m, nil
	}

	if m.showFilter {
		return m.handleFilterInput(msg)
	}

	switch m.state {
	case ViewStateList:
		return m.handleListUpdate(msg)
	case ViewStateDetail:
		return m.handleDetailUpdate(msg)
	case ViewStateQuitting:
		return m, nil
	default:
		return m, nil
	}
}

func (m ResultsModel) handleFilterInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEnter, keyEsc:
			m.showFilter = false
			m.textInput.Blur()
			m.applyFilter(m.textInput.Value())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m ResultsModel) handleListUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case keyQuit, keyCtrlC:
		m.state = ViewStateQuitting
		return m, tea.Quit
	case keyEnter:
		m.selected = m.table.Cursor()
		if m.selected >= 0 && m.selected < len(m.rows) {
			m.state = ViewStateDetail
		}
		return m, nil
	case keySlash:
		m.showFilter = true
		m.textInput.Focus()
		return m, textinput.Blink
	case keySort:
		m.sortBy = (m.sortBy + 1) % numSortFields
		m.refreshTable()
		return m, nil
	case keyEsc:
		if m.textInput.Value() != "" {
			m.textInput.SetValue("")
			m.applyFilter("")
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(keyMsg)
		return m, cmd
	}
}

func (m ResultsModel) handleDetailUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC:
			m.state = ViewStateQuitting
			return m, tea.Quit
		case keyEsc:
			m.state = ViewStateList
			m.table.Focus()
			return m, nil
		}
	}
	return m, nil
}

// applyFilter filters rows on activity or scope substring match.
func (m *ResultsModel) applyFilter(filterText string) {
	if filterText == "" {
		m.rows = m.allRows
	} else {
		query := strings.ToLower(filterText)
		filtered := []engine.RowResult{}
		for _, row := range m.allRows {
			if strings.Contains(strings.ToLower(row.Row.Activity), query) ||
				strings.Contains(strings.ToLower(string(row.Scope)), query) {
				filtered = append(filtered, row)
			}
		}
		m.rows = filtered
	}
	m.refreshTable()
}

// refreshTable re-sorts and rebuilds the table.
func (m *ResultsModel) refreshTable() {
	switch m.sortBy {
	case SortByCO2e:
		sort.SliceStable(m.rows, func(i, j int) bool {
			return m.rows[i].CO2e > m.rows[j].CO2e
		})
	case SortByActivity:
		sort.SliceStable(m.rows, func(i, j int) bool {
			return m.rows[i].Row.Activity < m.rows[j].Row.Activity
		})
	case SortByScope:
		sort.SliceStable(m.rows, func(i, j int) bool {
			return m.rows[i].Scope < m.rows[j].Scope
		})
	}

	m.table = m.buildResultsTable()
}

func (m *ResultsModel) buildResultsTable() table.Model {
	columns := []table.Column{
		{Title: "Scope", Width: 8},     //nolint:mnd // Column width.
		{Title: "Activity", Width: 24}, //nolint:mnd // Column width.
		{Title: "Amount", Width: 12},   //nolint:mnd // Column width.
		{Title: "Unit", Width: 6},      //nolint:mnd // Column width.
		{Title: "Factor", Width: 10},   //nolint:mnd // Column width.
		{Title: "CO2e", Width: 14},     //nolint:mnd // Column width.
		{Title: "Source", Width: 16},   //nolint:mnd // Column width.
	}

	rows := make([]table.Row, len(m.rows))
	for i, rr := range m.rows {
		co2eStr := report.FormatCO2e(rr.CO2e)
		factorStr := fmt.Sprintf("%.4f", rr.Factor)
		source := rr.Provenance.Source
		if rr.Unresolved {
			co2eStr = "-"
			factorStr = "-"
			source = "unresolved"
		}

		rows[i] = table.Row{
			string(rr.Scope),
			rr.Row.Activity,
			fmt.Sprintf("%.2f", rr.Amount),
			rr.Unit,
			factorStr,
			co2eStr,
			source,
		}
	}

	availableHeight := m.height - summaryHeight - 1
	if availableHeight < minHeight {
		availableHeight = minHeight
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(availableHeight),
	)
	t.SetStyles(tableStyles())
	return t
}

// Rows returns the currently visible rows (for external access).
func (m *ResultsModel) Rows() []engine.RowResult {
	return m.rows
}

// State returns the current view state.
func (m *ResultsModel) State() ViewState {
	return m.state
}

// View renders the current screen (Bubble Tea interface).
func (m ResultsModel) View() string {
	switch m.state {
	case ViewStateQuitting:
		return ""
	case ViewStateDetail:
		return m.renderDetail()
	default:
		return m.renderList()
	}
}

func (m ResultsModel) renderList() string {
	var b strings.Builder
	b.WriteString(RenderEmissionsSummary(m.result, m.width))
	b.WriteString("\n")
	if m.showFilter {
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
	}
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render("enter: detail  /: filter  s: sort  q: quit"))
	return b.String()
}

func (m ResultsModel) renderDetail() string {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return InfoStyle.Render("No row selected.")
	}
	rr := m.rows[m.selected]

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("ROW DETAIL"))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Activity:  "))
	b.WriteString(ValueStyle.Render(rr.Row.Activity))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Scope:     "))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%s (%s)", rr.Scope, rr.ScopeCategory)))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Amount:    "))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%.4f %s", rr.Amount, rr.Unit)))
	b.WriteString("\n")

	if rr.Unresolved {
		b.WriteString(WarnStyle.Render("No emission factor could be resolved for this row."))
	} else {
		b.WriteString(LabelStyle.Render("Factor:    "))
		b.WriteString(ValueStyle.Render(fmt.Sprintf("%.6f", rr.Factor)))
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("CO2e:      "))
		b.WriteString(ValueStyle.Render(report.FormatCO2e(rr.CO2e)))
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Citation:  "))
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%s v%s %s %d",
			rr.Provenance.Source, rr.Provenance.Version, rr.Provenance.Region, rr.Provenance.Year)))
	}

	b.WriteString("\n\n")
	b.WriteString(SubtleStyle.Render("esc: back  q: quit"))
	return BoxStyle.Width(m.width - 2).Render(b.String())
}
