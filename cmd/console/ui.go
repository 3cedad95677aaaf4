package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Describe what you do..."
	maxOOCLines     = 8
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *apiClient
	session      *state.GameSession
	events       <-chan SSEEvent
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string
	loading      bool
	streamClosed bool

	// Recent table talk, oldest first.
	ooc []string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type actionResponseMsg struct {
	response *chat.ActionResponse
	err      error
}

type sessionMsg struct {
	session *state.GameSession
	err     error
}

type sseMsg struct {
	event SSEEvent
}

type sseClosedMsg struct{}

type noticeMsg struct {
	text string
	err  error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	oocStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	activeTurnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *apiClient, gs *state.GameSession, events <-chan SSEEvent) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		client:       client,
		session:      gs,
		events:       events,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, waitForEvent(m.events)}
	if m.needsOpening() {
		cmds = append(cmds, m.beginStory(), progressTick())
	}
	return tea.Batch(cmds...)
}

// needsOpening reports whether this user should request the opening
// narration: the host of an active session with no history yet.
func (m ConsoleUI) needsOpening() bool {
	gs := m.session
	return gs.HostID == m.client.userID && gs.Status == state.StatusActive && len(gs.History) == 0
}

func (m ConsoleUI) isMyTurn() bool {
	gs := m.session
	if gs.Status != state.StatusActive {
		return false
	}
	if !gs.IsMultiplayer() {
		return true
	}
	return gs.CanActAs(m.client.userID, gs.CurrentActorID)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.70) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlR:
			m.notice = "Refreshing..."
			return m, m.refreshSession()
		case tea.KeyCtrlY:
			return m, copyLastNarration(m.session)
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			if !m.isMyTurn() {
				m.notice = fmt.Sprintf("Waiting for %s.", m.session.DisplayName(m.session.CurrentActorID))
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.err = nil
			m.notice = ""
			m.progressTick = 0
			m.writeChatContent()

			return m, tea.Batch(m.sendAction(input), progressTick())
		}

	case actionResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			var apiErr *APIError
			if errors.As(msg.err, &apiErr) && apiErr.Code == "conflict" {
				m.notice = "The session changed under you; reloading."
			}
		}
		m.writeChatContent()
		return m, m.refreshSession()

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else if msg.session != nil {
			m.session = msg.session
			if m.notice == "Refreshing..." {
				m.notice = ""
			}
		}
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case sseMsg:
		cmds := []tea.Cmd{waitForEvent(m.events)}
		switch msg.event.Type {
		case "session.updated", "session.started":
			if !m.loading {
				cmds = append(cmds, m.refreshSession())
			}
		case "ooc.message":
			m.addOOC(msg.event.Data)
			m.metaViewport.SetContent(m.writeMetadata())
		case "presence.changed", "connected":
			m.metaViewport.SetContent(m.writeMetadata())
		}
		return m, tea.Batch(cmds...)

	case sseClosedMsg:
		m.streamClosed = true
		m.metaViewport.SetContent(m.writeMetadata())

	case noticeMsg:
		m.notice = msg.text
		if msg.err != nil {
			m.err = msg.err
		}
		m.writeChatContent()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) addOOC(data map[string]any) {
	user, _ := data["user_id"].(string)
	text, _ := data["text"].(string)
	if text == "" {
		return
	}
	m.ooc = append(m.ooc, fmt.Sprintf("%s: %s", m.session.DisplayName(user), text))
	if len(m.ooc) > maxOOCLines {
		m.ooc = m.ooc[len(m.ooc)-maxOOCLines:]
	}
}

// writeChatContent renders the session history for the current viewport
// width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	title := "TALEPARTY"
	if m.session.Title != "" {
		title = strings.ToUpper(m.session.Title)
	}
	content.WriteString(titleStyle.Render(title) + "\n\n")

	switch m.session.Status {
	case state.StatusForming:
		content.WriteString(loadingStyle.Render("The party is gathering.") + "\n")
		if m.session.HostID == m.client.userID {
			content.WriteString("Type /start once everyone has joined.\n")
		}
	case state.StatusFinished:
		content.WriteString(promptStyle.Render("This story has ended.") + "\n")
	default:
		content.WriteString("Type your actions below to interact with the story.\n")
	}
	content.WriteString("\n" + separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, msg := range m.session.History {
		if msg.IsNarrator() {
			content.WriteString(formatNarratorResponse(msg.Content, chatWidth) + "\n\n")
			continue
		}
		content.WriteString(formatParticipantMessage(msg, m.client.userID, m.session.IsMultiplayer(), chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar() + "\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) writeMetadata() string {
	gs := m.session
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("ID:\n")
	content.WriteString(gs.ID.String() + "\n\n")

	content.WriteString(fmt.Sprintf("Mode: %s (%s)\n", gs.Mode, gs.Difficulty))
	content.WriteString(fmt.Sprintf("Status: %s\n", gs.Status))
	if m.streamClosed {
		content.WriteString(errorStyle.Render("Live updates offline") + "\n")
	}
	content.WriteString("\n")

	if gs.IsMultiplayer() {
		content.WriteString(titleStyle.Render("PARTY") + "\n")
		order := gs.TurnOrder
		if len(order) == 0 {
			for _, p := range gs.Participants {
				order = append(order, p.UserID)
			}
		}
		for _, id := range order {
			line := gs.DisplayName(id)
			if id == m.client.userID {
				line += " (you)"
			}
			if id == gs.CurrentActorID && gs.Status == state.StatusActive {
				content.WriteString(activeTurnStyle.Render("▶ "+line) + "\n")
			} else {
				content.WriteString("  " + line + "\n")
			}
		}
		content.WriteString("\n")
	}

	content.WriteString(titleStyle.Render("INVENTORY") + "\n")
	if len(gs.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range gs.Inventory {
		content.WriteString("• " + item + "\n")
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("CHARACTERS") + "\n")
	if len(gs.NPCs) == 0 {
		content.WriteString("None met\n")
	}
	for _, npc := range gs.NPCs {
		line := "• " + npc.Name
		if npc.State != "" {
			line += " (" + npc.State + ")"
		}
		content.WriteString(wordwrap.String(line, max(m.metaViewport.Width, 10)) + "\n")
	}

	if len(m.ooc) > 0 {
		content.WriteString("\n" + titleStyle.Render("TABLE TALK") + "\n")
		for _, line := range m.ooc {
			content.WriteString(oocStyle.Render(wordwrap.String(line, max(m.metaViewport.Width, 10))) + "\n")
		}
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Act\n")
	content.WriteString("• Ctrl+R: Refresh\n")
	content.WriteString("• Ctrl+Y: Copy narration\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• /help: Help\n")

	return content.String()
}

func formatParticipantMessage(msg chat.Message, me string, multiplayer bool, width int) string {
	if !multiplayer {
		return userStyle.Render("You: ") + wordwrap.String(msg.Content, width-5)
	}
	// Multiplayer actions carry their speaker already.
	speaker, rest, ok := strings.Cut(msg.Content, ": ")
	if !ok {
		return wordwrap.String(msg.Content, width)
	}
	style := speakerStyle
	if msg.AuthorID == me {
		style = userStyle
	}
	return style.Render(speaker+":") + " " + wordwrap.String(rest, width-len(speaker)-2)
}

func formatNarratorResponse(response string, width int) string {
	narratorPrefix := AgentName + ": "
	wrapped := wordwrap.String(response, width-len(narratorPrefix))
	lines := strings.Split(wrapped, "\n")
	formatted := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formatted = append(formatted, "")
			continue
		}
		// Highlight short "Speaker:" prefixes in quoted dialogue.
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			if len(strings.Fields(speaker)) <= 2 {
				formatted = append(formatted, speakerStyle.Render(speaker+":")+trimmed[idx+1:])
				continue
			}
		}
		formatted = append(formatted, line)
	}

	return narratorStyle.Render(narratorPrefix) + strings.Join(formatted, "\n")
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	arg = strings.TrimSpace(arg)
	m.textarea.Reset()

	switch strings.ToLower(name) {
	case "/help":
		m.notice = `Commands:
• /help - Show this help
• /ooc <text> - Talk out of character
• /as <id> <action> - Act for a narrator character you control
• /start - Start a gathering party (host)
• /copy - Copy the last narration
• Ctrl+R - Refresh, Ctrl+C - Quit`
		m.writeChatContent()
		return m, nil

	case "/ooc":
		if arg == "" {
			return m, nil
		}
		return m, m.postOOC(arg)

	case "/as":
		actorID, action, ok := strings.Cut(arg, " ")
		if !ok || strings.TrimSpace(action) == "" {
			m.notice = "Usage: /as <id> <action>"
			m.writeChatContent()
			return m, nil
		}
		m.loading = true
		m.err = nil
		m.writeChatContent()
		return m, tea.Batch(m.sendActionAs(actorID, strings.TrimSpace(action)), progressTick())

	case "/start":
		return m, m.startParty()

	case "/copy":
		return m, copyLastNarration(m.session)
	}

	m.notice = fmt.Sprintf("Unknown command %s. Type /help.", name)
	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) sendAction(message string) tea.Cmd {
	return m.sendActionAs("", message)
}

func (m ConsoleUI) sendActionAs(actorID, message string) tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		resp, err := m.client.submitAction(context.Background(), id, chat.ActionRequest{
			ActorID: actorID,
			Message: message,
		})
		return actionResponseMsg{resp, err}
	}
}

func (m ConsoleUI) beginStory() tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		resp, err := m.client.beginStory(context.Background(), id)
		return actionResponseMsg{resp, err}
	}
}

func (m ConsoleUI) startParty() tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		gs, err := m.client.startSession(context.Background(), id)
		if err != nil {
			return sessionMsg{nil, err}
		}
		// The host opens the story as soon as the party starts.
		if _, err := m.client.beginStory(context.Background(), id); err != nil {
			return sessionMsg{gs, err}
		}
		gs, err = m.client.getSession(context.Background(), id)
		return sessionMsg{gs, err}
	}
}

func (m ConsoleUI) postOOC(text string) tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		if err := m.client.postOOC(context.Background(), id, text); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		gs, err := m.client.getSession(context.Background(), id)
		return sessionMsg{gs, err}
	}
}

// lastNarration returns the newest narrator message, or "" when there is
// none.
func lastNarration(gs *state.GameSession) string {
	for i := len(gs.History) - 1; i >= 0; i-- {
		if gs.History[i].IsNarrator() {
			return gs.History[i].Content
		}
	}
	return ""
}

func copyLastNarration(gs *state.GameSession) tea.Cmd {
	text := lastNarration(gs)
	return func() tea.Msg {
		if text == "" {
			return noticeMsg{text: "Nothing to copy yet."}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return noticeMsg{err: fmt.Errorf("copy failed: %w", err)}
		}
		return noticeMsg{text: "Copied the last narration."}
	}
}

func waitForEvent(events <-chan SSEEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return sseClosedMsg{}
		}
		return sseMsg{ev}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave the table?"))
	content.WriteString("\n\n")
	content.WriteString("The session stays open; you can rejoin with -session.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	turnLine := promptStyle.Render("")
	if m.session.Status == state.StatusActive && m.session.IsMultiplayer() {
		if m.isMyTurn() {
			turnLine = activeTurnStyle.Render(" Your turn ")
		} else {
			turnLine = promptStyle.Render("Waiting for " + m.session.DisplayName(m.session.CurrentActorID))
		}
	}

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			turnLine,
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	usable = min(max(usable, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓") // Blinking effect at the progress point
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
