package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/taleparty/internal/services/presence"
	"github.com/jwebster45206/taleparty/internal/services/queue"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/prompts"
	"github.com/jwebster45206/taleparty/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
		check   func(t *testing.T, gs *state.GameSession)
	}{
		{
			name: "single-party defaults",
			req:  CreateRequest{},
			check: func(t *testing.T, gs *state.GameSession) {
				assert.Equal(t, state.ModeClassic, gs.Mode)
				assert.Equal(t, state.DifficultyNormal, gs.Difficulty)
				assert.Equal(t, state.StatusActive, gs.Status)
				assert.Equal(t, "host", gs.CurrentActorID)
			},
		},
		{
			name: "multiplayer roster",
			req: CreateRequest{
				Mode:             state.ModeMultiplayer,
				Difficulty:       state.DifficultyHard,
				CharacterName:    "  Hana  ",
				Invitees:         []string{"p1", "host", "p2", "p1"},
				NarratorEntityID: "npc",
			},
			check: func(t *testing.T, gs *state.GameSession) {
				assert.Equal(t, state.StatusForming, gs.Status)
				require.Len(t, gs.Participants, 4)
				assert.Equal(t, "Hana", gs.Participants[0].CharacterName)
				assert.Equal(t, "p1", gs.Participants[1].UserID)
				assert.False(t, gs.Participants[1].HasJoined())
				assert.True(t, gs.Participants[3].IsNarratorEntity())
				assert.Equal(t, "host", gs.Participants[3].ControllerID)
				assert.Empty(t, gs.CurrentActorID)
			},
		},
		{
			name:    "unknown mode",
			req:     CreateRequest{Mode: "arena"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown difficulty",
			req:     CreateRequest{Difficulty: "brutal"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "invitees need multiplayer",
			req:     CreateRequest{Mode: state.ModeDetective, Invitees: []string{"p1"}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "multiplayer host needs a name",
			req:     CreateRequest{Mode: state.ModeMultiplayer},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "entity id collides with invitee",
			req:     CreateRequest{Mode: state.ModeMultiplayer, CharacterName: "Hana", Invitees: []string{"x"}, NarratorEntityID: "x"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			gs, err := env.orch.CreateSession(context.Background(), "host", tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, env.records.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), gs.Version)
			tt.check(t, env.reload(t, gs.ID))
		})
	}
}

func TestJoinSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gs, err := env.orch.CreateSession(ctx, "A", CreateRequest{
		Mode:             state.ModeMultiplayer,
		CharacterName:    "Aria",
		Invitees:         []string{"B"},
		NarratorEntityID: "npc",
	})
	require.NoError(t, err)

	_, err = env.orch.JoinSession(ctx, gs.ID, "B", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.orch.JoinSession(ctx, gs.ID, "Z", "Zed")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orch.JoinSession(ctx, gs.ID, "npc", "Puppet")
	assert.ErrorIs(t, err, ErrInvalidState)

	joined, err := env.orch.JoinSession(ctx, gs.ID, "B", "Bram")
	require.NoError(t, err)
	p, _ := joined.Participant("B")
	assert.Equal(t, "Bram", p.CharacterName)
	assert.False(t, p.JoinedAt.IsZero())

	_, err = env.orch.JoinSession(ctx, gs.ID, "B", "Someone Else")
	assert.ErrorIs(t, err, ErrInvalidState, "names are set exactly once")

	_, err = env.orch.StartSession(ctx, gs.ID, "A")
	require.NoError(t, err)
	_, err = env.orch.JoinSession(ctx, gs.ID, "A", "Late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gs, err := env.orch.CreateSession(ctx, "A", CreateRequest{
		Mode:          state.ModeMultiplayer,
		CharacterName: "Aria",
		Invitees:      []string{"B"},
	})
	require.NoError(t, err)

	_, err = env.orch.StartSession(ctx, gs.ID, "A")
	assert.ErrorIs(t, err, ErrInvalidState, "B has not joined")

	_, err = env.orch.JoinSession(ctx, gs.ID, "B", "Bram")
	require.NoError(t, err)

	_, err = env.orch.StartSession(ctx, gs.ID, "B")
	assert.ErrorIs(t, err, ErrForbidden)

	started, err := env.orch.StartSession(ctx, gs.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, state.StatusActive, started.Status)
	assert.Equal(t, "A", started.CurrentActorID)
	assert.Contains(t, env.pub.kinds(), "started")

	_, err = env.orch.StartSession(ctx, gs.ID, "A")
	assert.ErrorIs(t, err, ErrInvalidState)

	solo, err := env.orch.CreateSession(ctx, "S", CreateRequest{})
	require.NoError(t, err)
	_, err = env.orch.StartSession(ctx, solo.ID, "S")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFinishSession(t *testing.T) {
	env := newTestEnv(t, "Fin.")
	gs := env.startParty(t)
	ctx := context.Background()

	_, err := env.orch.FinishSession(ctx, gs.ID, "B")
	assert.ErrorIs(t, err, ErrForbidden)

	finished, err := env.orch.FinishSession(ctx, gs.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, state.StatusFinished, finished.Status)

	_, err = env.orch.SubmitAction(ctx, gs.ID, "A", chat.ActionRequest{Message: "one more"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.orch.FinishSession(ctx, gs.ID, "A")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGetAndDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	gs := env.startParty(t)
	ctx := context.Background()

	got, err := env.orch.GetSession(ctx, gs.ID, "C")
	require.NoError(t, err)
	assert.Equal(t, gs.ID, got.ID)

	_, err = env.orch.GetSession(ctx, gs.ID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, env.orch.DeleteSession(ctx, gs.ID, "B"), ErrForbidden)
	require.NoError(t, env.orch.DeleteSession(ctx, gs.ID, "A"))

	_, err = env.orch.GetSession(ctx, gs.ID, "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginStory(t *testing.T) {
	env := newTestEnv(t, "You wake in a cell. [ITEM_ACQUIRED:BENT_SPOON]")
	ctx := context.Background()
	gs, err := env.orch.CreateSession(ctx, "solo", CreateRequest{Mode: state.ModePrisonEscape})
	require.NoError(t, err)

	resp, err := env.orch.BeginStory(ctx, gs.ID, "solo")
	require.NoError(t, err)
	assert.Equal(t, "You wake in a cell.", resp.Narration)

	calls := env.narrator.GetCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].History, 1)
	assert.Equal(t, prompts.BeginMessage, calls[0].History[0].Content)

	stored := env.reload(t, gs.ID)
	require.Len(t, stored.History, 1, "the begin entry is not stored")
	assert.True(t, stored.History[0].IsNarrator())
	assert.Equal(t, state.Inventory{"BENT SPOON"}, stored.Inventory)

	_, err = env.orch.BeginStory(ctx, gs.ID, "solo")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGenerateTitle(t *testing.T) {
	ctx := context.Background()

	t.Run("titles from the opening narration", func(t *testing.T) {
		env := newTestEnv(t, "You wake in a cell.", `"the iron gate of doom."`)
		gs, err := env.orch.CreateSession(ctx, "solo", CreateRequest{})
		require.NoError(t, err)
		_, err = env.orch.BeginStory(ctx, gs.ID, "solo")
		require.NoError(t, err)

		title, err := env.orch.GenerateTitle(ctx, gs.ID, "solo")
		require.NoError(t, err)
		assert.Equal(t, "The Iron Gate Of", title)
		assert.Equal(t, title, env.reload(t, gs.ID).Title)

		calls := env.narrator.GetCalls()
		assert.Equal(t, prompts.TitlePrompt, calls[1].Instruction)
		assert.Equal(t, "You wake in a cell.", calls[1].History[0].Content)
	})

	t.Run("falls back without narration", func(t *testing.T) {
		env := newTestEnv(t)
		gs, err := env.orch.CreateSession(ctx, "solo", CreateRequest{})
		require.NoError(t, err)

		title, err := env.orch.GenerateTitle(ctx, gs.ID, "solo")
		require.NoError(t, err)
		assert.Equal(t, prompts.DefaultTitle, title)
		assert.Empty(t, env.narrator.GetCalls())
	})

	t.Run("narrator failure is not an error", func(t *testing.T) {
		env := newTestEnv(t, "Snow.")
		gs, err := env.orch.CreateSession(ctx, "solo", CreateRequest{})
		require.NoError(t, err)
		_, err = env.orch.BeginStory(ctx, gs.ID, "solo")
		require.NoError(t, err)

		env.narrator.SetError(errors.New("quota exceeded"))
		title, err := env.orch.GenerateTitle(ctx, gs.ID, "solo")
		require.NoError(t, err)
		assert.Equal(t, prompts.DefaultTitle, title)
		assert.Empty(t, env.reload(t, gs.ID).Title)
	})
}

func TestOOCAndPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t)
	tracker := presence.NewTracker(client, time.Minute, testLogger())
	env.orch.WithPresence(tracker).WithOOCLog(queue.NewOOCQueue(client, testLogger()))
	gs := env.startParty(t)
	ctx := context.Background()

	msg, err := env.orch.PostOOC(ctx, gs.ID, "B", "  brb, snacks  ")
	require.NoError(t, err)
	assert.Equal(t, "brb, snacks", msg.Text)

	_, err = env.orch.PostOOC(ctx, gs.ID, "stranger", "hi")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.orch.PostOOC(ctx, gs.ID, "B", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	msgs, err := env.orch.ListOOC(ctx, gs.ID, "C", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "B", msgs[0].UserID)
	assert.Empty(t, env.reload(t, gs.ID).History, "table talk never reaches the story")

	members, err := env.orch.Connect(ctx, gs.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, members)
	members, err = env.orch.Connect(ctx, gs.ID, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, members)
	require.NoError(t, env.orch.Heartbeat(ctx, gs.ID, "C"))

	env.orch.Disconnect(ctx, gs.ID, "A")
	members, err = tracker.Members(ctx, gs.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, members)

	kinds := env.pub.kinds()
	assert.Contains(t, kinds, "ooc")
	assert.Contains(t, kinds, "presence")

	require.NoError(t, env.orch.DeleteSession(ctx, gs.ID, "A"))
	assert.False(t, mr.Exists("ooc:"+gs.ID.String()))
	assert.False(t, mr.Exists("presence:"+gs.ID.String()))
}
