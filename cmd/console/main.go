package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/state"
)

type ConsoleConfig struct {
	APIBaseURL string
	UserID     string
	Token      string
	Timeout    time.Duration
}

func main() {
	sessionFlag := flag.String("session", "", "existing session id to open")
	modeFlag := flag.String("mode", string(state.ModeClassic), "game mode for a new session")
	difficultyFlag := flag.String("difficulty", string(state.DifficultyNormal), "difficulty for a new session")
	characterFlag := flag.String("character", "", "your character name (required to host or join a multiplayer session)")
	inviteFlag := flag.String("invite", "", "comma-separated user ids to invite to a multiplayer session")
	legendFlag := flag.String("legend", "", "legend name for legends mode")
	flag.Parse()

	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		UserID:     getEnv("TALEPARTY_USER", getEnv("USER", "player")),
		Token:      os.Getenv("TALEPARTY_TOKEN"),
		Timeout:    90 * time.Second,
	}

	client := &apiClient{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		userID:  cfg.UserID,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !client.healthy(ctx) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	var (
		gs  *state.GameSession
		err error
	)
	if *sessionFlag != "" {
		gs, err = openSession(ctx, client, *sessionFlag, *characterFlag)
	} else {
		gs, err = client.createSession(ctx, CreateSessionRequest{
			Mode:          state.GameMode(*modeFlag),
			Difficulty:    state.Difficulty(*difficultyFlag),
			CharacterName: *characterFlag,
			Invitees:      splitList(*inviteFlag),
			LegendName:    *legendFlag,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session %s\n", gs.ID)

	events := make(chan SSEEvent, 16)
	go func() {
		defer close(events)
		if err := client.listenToSSE(ctx, gs.ID, events); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "event stream closed: %v\n", err)
		}
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, client, gs, events),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// openSession loads a session and joins it when the caller is an invitee who
// has not picked a character yet.
func openSession(ctx context.Context, client *apiClient, rawID, characterName string) (*state.GameSession, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", rawID, err)
	}
	gs, err := client.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	p, ok := gs.Participant(client.userID)
	if !ok || p.HasJoined() || gs.Status != state.StatusForming {
		return gs, nil
	}
	if characterName == "" {
		return nil, errors.New("you were invited to this session; pass -character to join")
	}
	return client.joinSession(ctx, id, characterName)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
