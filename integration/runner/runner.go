package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration suites against a running taleparty API that
// trusts the X-User-ID header.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 90 * time.Second},
		Timeout:           60 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
		Logger:            func(string, ...any) {},
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// Run assembles the suite's party, plays its steps and deletes the session.
func (r *Runner) Run(ctx context.Context, suite TestSuite) TestRunResult {
	start := time.Now()
	result := TestRunResult{Suite: suite}

	gs, err := r.setup(ctx, suite)
	if err != nil {
		result.Error = fmt.Errorf("setup: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.SessionID = gs.ID
	r.Logger("  session %s", gs.ID)

	defer func() {
		if _, err := r.call(context.WithoutCancel(ctx), http.MethodDelete, "/v1/sessions/"+gs.ID.String(), suite.Host.UserID, nil, nil); err != nil {
			r.Logger("  cleanup failed: %v", err)
		}
	}()

	for i, step := range suite.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i+1)
		}
		res := r.runStep(ctx, gs.ID, step)
		res.TestName = suite.Name
		res.StepName = name
		result.Results = append(result.Results, res)

		if res.Success {
			r.Logger("  ✓ %s (%s)", name, res.Duration.Round(time.Millisecond))
			continue
		}
		r.Logger("  ✗ %s: %v", name, res.Error)
		if r.ErrorHandlingMode == ErrorHandlingExit {
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Runner) setup(ctx context.Context, suite TestSuite) (*state.GameSession, error) {
	invitees := make([]string, 0, len(suite.Guests))
	for _, g := range suite.Guests {
		invitees = append(invitees, g.UserID)
	}

	var gs state.GameSession
	body := map[string]any{
		"game_mode":      suite.Mode,
		"difficulty":     suite.Difficulty,
		"character_name": suite.Host.CharacterName,
		"invitees":       invitees,
	}
	if _, err := r.call(ctx, http.MethodPost, "/v1/sessions", suite.Host.UserID, body, &gs); err != nil {
		return nil, err
	}

	if suite.Mode == state.ModeMultiplayer {
		for _, g := range suite.Guests {
			if _, err := r.call(ctx, http.MethodPost, "/v1/sessions/"+gs.ID.String()+"/join", g.UserID,
				map[string]string{"character_name": g.CharacterName}, nil); err != nil {
				return nil, fmt.Errorf("join %s: %w", g.UserID, err)
			}
		}
		if _, err := r.call(ctx, http.MethodPost, "/v1/sessions/"+gs.ID.String()+"/start", suite.Host.UserID, nil, &gs); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}

	if suite.Begin {
		if _, err := r.call(ctx, http.MethodPost, "/v1/sessions/"+gs.ID.String()+"/begin", suite.Host.UserID, nil, nil); err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
	}
	return &gs, nil
}

func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	start := time.Now()

	var resp chat.ActionResponse
	status, err := r.call(stepCtx, http.MethodPost, "/v1/sessions/"+id.String()+"/actions", step.UserID,
		chat.ActionRequest{ActorID: step.ActorID, Message: step.Message}, &resp)
	res := TestResult{Duration: time.Since(start), ResponseText: resp.Narration}

	want := step.Expectations.Status
	if want == 0 {
		want = http.StatusOK
	}
	if status != want {
		res.Error = fmt.Errorf("expected status %d, got %d (%v)", want, status, err)
		return res
	}
	if want != http.StatusOK {
		if step.Expectations.ErrorCode != "" && !strings.Contains(fmt.Sprint(err), step.Expectations.ErrorCode) {
			res.Error = fmt.Errorf("expected error code %q, got %v", step.Expectations.ErrorCode, err)
			return res
		}
		res.Success = true
		return res
	}

	var gs state.GameSession
	if _, err := r.call(stepCtx, http.MethodGet, "/v1/sessions/"+id.String(), step.UserID, nil, &gs); err != nil {
		res.Error = fmt.Errorf("reload: %w", err)
		return res
	}

	res.Error = checkExpectations(step.Expectations, &resp, &gs)
	res.Success = res.Error == nil
	return res
}

func checkExpectations(exp Expectations, resp *chat.ActionResponse, gs *state.GameSession) error {
	var failures []string

	if exp.NextActorID != nil && resp.NextActorID != *exp.NextActorID {
		failures = append(failures, fmt.Sprintf("next actor: expected %q, got %q", *exp.NextActorID, resp.NextActorID))
	}
	for _, item := range exp.InventoryHas {
		if !gs.Inventory.Contains(item) {
			failures = append(failures, fmt.Sprintf("inventory: missing %q in %v", item, gs.Inventory))
		}
	}
	for _, name := range exp.NPCNames {
		if _, ok := gs.NPCs.Get(name); !ok {
			failures = append(failures, fmt.Sprintf("npcs: missing %q", name))
		}
	}
	if exp.HistoryLength != nil && len(gs.History) != *exp.HistoryLength {
		failures = append(failures, fmt.Sprintf("history: expected %d messages, got %d", *exp.HistoryLength, len(gs.History)))
	}
	lower := strings.ToLower(resp.Narration)
	for _, s := range exp.ResponseContains {
		if !strings.Contains(lower, strings.ToLower(s)) {
			failures = append(failures, fmt.Sprintf("narration: missing %q", s))
		}
	}
	if exp.ResponseRegex != "" {
		re, err := regexp.Compile(exp.ResponseRegex)
		if err != nil {
			failures = append(failures, fmt.Sprintf("invalid regex %q: %v", exp.ResponseRegex, err))
		} else if !re.MatchString(resp.Narration) {
			failures = append(failures, fmt.Sprintf("narration does not match %q", exp.ResponseRegex))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	slices.Sort(failures)
	return fmt.Errorf("%s", strings.Join(failures, "; "))
}

// call sends a request as userID. It returns the HTTP status and, for non-2xx
// answers, an error carrying the API's error body.
func (r *Runner) call(ctx context.Context, method, path, userID string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
