// Package session orchestrates turns: it validates the actor, composes the
// prompt, calls the narrator, folds tagged side effects into the snapshot,
// advances the turn, and persists the result as one version-guarded write.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/internal/services"
	"github.com/jwebster45206/taleparty/internal/services/queue"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/prompts"
	"github.com/jwebster45206/taleparty/pkg/state"
	"github.com/jwebster45206/taleparty/pkg/tags"
	"github.com/jwebster45206/taleparty/pkg/turn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultNarratorTimeout = 60 * time.Second

var tracer = otel.Tracer("github.com/jwebster45206/taleparty/internal/session")

// Store persists session snapshots. Save must fail with
// storage.ErrVersionConflict when the stored version differs from gs.Version.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*state.GameSession, error)
	Create(ctx context.Context, gs *state.GameSession) error
	Save(ctx context.Context, gs *state.GameSession) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Publisher fans committed changes out to subscribed clients.
type Publisher interface {
	PublishSessionUpdated(ctx context.Context, sessionID uuid.UUID, version int64, nextActorID string) error
	PublishSessionStarted(ctx context.Context, sessionID uuid.UUID, turnOrder []string) error
	PublishOOC(ctx context.Context, sessionID uuid.UUID, userID, text string) error
	PublishPresence(ctx context.Context, sessionID uuid.UUID, members []string) error
}

// Presence tracks which members are currently connected to a session.
type Presence interface {
	Join(ctx context.Context, sessionID uuid.UUID, userID string) error
	Leave(ctx context.Context, sessionID uuid.UUID, userID string) error
	Members(ctx context.Context, sessionID uuid.UUID) ([]string, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// OOCLog stores out-of-character table talk.
type OOCLog interface {
	Append(ctx context.Context, sessionID uuid.UUID, msg queue.OOCMessage) error
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]queue.OOCMessage, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// Options tune the orchestrator. Zero values select defaults.
type Options struct {
	HistoryLimit    int
	NarratorTimeout time.Duration
}

// Orchestrator runs session operations. It holds no per-session state; the
// stored snapshot version is the only concurrency control.
type Orchestrator struct {
	store    Store
	narrator services.Narrator
	titler   services.Narrator
	parser   *tags.Parser

	publisher Publisher
	presence  Presence
	ooc       OOCLog

	historyLimit    int
	narratorTimeout time.Duration
	logger          *slog.Logger
}

// New creates an orchestrator. titler may be nil, in which case narrator also
// writes titles. Collaborators set with the With* methods are optional.
func New(store Store, narrator, titler services.Narrator, opts Options, logger *slog.Logger) *Orchestrator {
	if titler == nil {
		titler = narrator
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = prompts.DefaultHistoryLimit
	}
	if opts.NarratorTimeout <= 0 {
		opts.NarratorTimeout = DefaultNarratorTimeout
	}
	return &Orchestrator{
		store:           store,
		narrator:        narrator,
		titler:          titler,
		parser:          tags.NewParser(logger),
		historyLimit:    opts.HistoryLimit,
		narratorTimeout: opts.NarratorTimeout,
		logger:          logger,
	}
}

// WithPublisher sets the change notification channel.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithPresence sets the membership tracker.
func (o *Orchestrator) WithPresence(p Presence) *Orchestrator {
	o.presence = p
	return o
}

// WithOOCLog sets the out-of-character message store.
func (o *Orchestrator) WithOOCLog(l OOCLog) *Orchestrator {
	o.ooc = l
	return o
}

// SubmitAction narrates one participant action. Every failure before the
// final write leaves the stored snapshot untouched.
func (o *Orchestrator) SubmitAction(ctx context.Context, sessionID uuid.UUID, userID string, req chat.ActionRequest) (resp *chat.ActionResponse, err error) {
	actorID := req.ActorID
	if actorID == "" {
		actorID = userID
	}

	ctx, span := tracer.Start(ctx, "session.submit_action", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.String("actor.id", actorID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !gs.IsMultiplayer() {
		actorID = gs.HostID
	}

	if err := turn.CheckActor(gs, actorID); err != nil {
		o.logger.Info("Rejected action", "session_id", sessionID, "actor_id", actorID, "current_actor_id", gs.CurrentActorID, "reason", err)
		return nil, turnError(err)
	}
	if gs.IsMultiplayer() && !gs.CanActAs(userID, actorID) {
		return nil, fmt.Errorf("%w: %s may not act as %s", ErrForbidden, userID, actorID)
	}

	content := req.Message
	if gs.IsMultiplayer() {
		content = chat.FormatWithSpeaker(content, gs.DisplayName(actorID))
	}
	action := chat.Message{Role: chat.RoleParticipant, Content: content, AuthorID: actorID}

	prompt, err := prompts.New().
		WithSession(gs).
		WithAction(action).
		WithHistoryLimit(o.historyLimit).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	narration, events, err := o.narrate(ctx, o.narrator, prompt)
	if err != nil {
		return nil, err
	}

	next := gs.Clone()
	next.History = append(next.History, action)
	next.Inventory, next.NPCs = state.Merge(gs.Inventory, gs.NPCs, events)

	nextActor := turn.Advance(next)
	announcement := ""
	if next.IsMultiplayer() && len(next.TurnOrder) > 1 {
		announcement = fmt.Sprintf("\n\nIt is now %s's turn.", next.DisplayName(nextActor))
	}
	next.History = append(next.History, chat.Message{Role: chat.RoleNarrator, Content: narration + announcement})

	if err := o.persist(ctx, next); err != nil {
		return nil, err
	}

	o.logger.Info("Action narrated",
		"session_id", sessionID,
		"actor_id", actorID,
		"next_actor_id", nextActor,
		"events", len(events),
		"version", next.Version,
	)
	o.notifyUpdated(ctx, next)

	return &chat.ActionResponse{
		SessionID:    sessionID,
		Narration:    narration,
		Announcement: strings.TrimSpace(announcement),
		NextActorID:  nextActor,
		Version:      next.Version,
	}, nil
}

// BeginStory asks the narrator for the opening scene of a session that has no
// history yet. The synthetic begin entry is sent but never stored.
func (o *Orchestrator) BeginStory(ctx context.Context, sessionID uuid.UUID, userID string) (*chat.ActionResponse, error) {
	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if gs.HostID != userID {
		return nil, fmt.Errorf("%w: only the host may begin the story", ErrForbidden)
	}
	if err := turn.CheckActor(gs, gs.CurrentActorID); err != nil {
		return nil, turnError(err)
	}
	if len(gs.History) > 0 {
		return nil, fmt.Errorf("%w: story has already begun", ErrInvalidState)
	}

	prompt, err := prompts.New().
		WithSession(gs).
		WithHistoryLimit(o.historyLimit).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	narration, events, err := o.narrate(ctx, o.narrator, prompt)
	if err != nil {
		return nil, err
	}

	next := gs.Clone()
	next.Inventory, next.NPCs = state.Merge(gs.Inventory, gs.NPCs, events)
	next.History = append(next.History, chat.Message{Role: chat.RoleNarrator, Content: narration})

	if err := o.persist(ctx, next); err != nil {
		return nil, err
	}
	o.notifyUpdated(ctx, next)

	return &chat.ActionResponse{
		SessionID:   sessionID,
		Narration:   narration,
		NextActorID: next.CurrentActorID,
		Version:     next.Version,
	}, nil
}

// GenerateTitle names the session from its opening narration. It never fails
// because of the narrator: problems are logged and the default title is
// returned instead.
func (o *Orchestrator) GenerateTitle(ctx context.Context, sessionID uuid.UUID, userID string) (string, error) {
	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}

	opening := ""
	for _, msg := range gs.History {
		if msg.IsNarrator() {
			opening = msg.Content
			break
		}
	}
	if opening == "" {
		return prompts.DefaultTitle, nil
	}

	input := prompts.BuildTitleInput(opening)
	ctx, cancel := context.WithTimeout(ctx, o.narratorTimeout)
	defer cancel()
	raw, err := o.titler.Complete(ctx, input.Instruction, input.History)
	if err != nil {
		o.logger.Warn("Title generation failed", "session_id", sessionID, "error", err)
		return prompts.DefaultTitle, nil
	}

	title := prompts.CleanTitle(raw)
	gs.Title = title
	if err := o.store.Save(ctx, gs); err != nil {
		o.logger.Warn("Failed to save title", "session_id", sessionID, "error", err)
		return title, nil
	}
	o.notifyUpdated(ctx, gs)
	return title, nil
}

// load fetches a snapshot and checks that userID belongs to it.
func (o *Orchestrator) load(ctx context.Context, sessionID uuid.UUID, userID string) (*state.GameSession, error) {
	gs, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, storageError(err)
	}
	if !gs.IsMember(userID) {
		return nil, fmt.Errorf("%w: %s is not a member of this session", ErrForbidden, userID)
	}
	return gs, nil
}

// narrate calls the narrator and splits its reply into prose and events.
func (o *Orchestrator) narrate(ctx context.Context, narrator services.Narrator, prompt *prompts.Prompt) (string, []tags.Event, error) {
	ctx, span := tracer.Start(ctx, "session.narrate", trace.WithAttributes(
		attribute.String("narrator.provider", narrator.Name()),
		attribute.Int("prompt.history_length", len(prompt.History)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.narratorTimeout)
	defer cancel()

	raw, err := narrator.Complete(ctx, prompt.Instruction, prompt.History)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("Narrator failed", "provider", narrator.Name(), "error", err)
		return "", nil, fmt.Errorf("%w: %w", ErrNarrationFailure, err)
	}

	narration, events := o.parser.Parse(raw)
	if narration == "" {
		err := fmt.Errorf("%w: narrator reply contained no prose", ErrNarrationFailure)
		span.RecordError(err)
		return "", nil, err
	}
	span.SetAttributes(attribute.Int("narration.events", len(events)))
	return narration, events, nil
}

// persist writes gs if its version is still current.
func (o *Orchestrator) persist(ctx context.Context, gs *state.GameSession) error {
	ctx, span := tracer.Start(ctx, "session.persist", trace.WithAttributes(
		attribute.String("session.id", gs.ID.String()),
		attribute.Int64("session.version", gs.Version),
	))
	defer span.End()

	if err := o.store.Save(ctx, gs); err != nil {
		span.RecordError(err)
		o.logger.Error("Failed to persist session", "session_id", gs.ID, "version", gs.Version, "error", err)
		return storageError(err)
	}
	return nil
}

// notifyUpdated is best-effort; the snapshot is already committed.
func (o *Orchestrator) notifyUpdated(ctx context.Context, gs *state.GameSession) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSessionUpdated(ctx, gs.ID, gs.Version, gs.CurrentActorID); err != nil {
		o.logger.Warn("Failed to publish session update", "session_id", gs.ID, "error", err)
	}
}
