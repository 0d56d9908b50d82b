package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func loaded(t *testing.T) State {
	t.Helper()

	s, changed, err := Initial().Apply(Command{
		Action: ActionChangeMovie,
		Media:  &Media{MovieId: "dune", EpisodeId: "1"},
	}, t0)
	require.NoError(t, err)
	require.True(t, changed)

	return s
}

func TestApply_ChangeMovie(t *testing.T) {
	s := loaded(t)

	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, 1, s.Epoch)
	assert.Equal(t, 0, s.Seq)
	assert.Equal(t, 0.0, s.Position)

	s, _, err := s.Apply(Command{Action: ActionPlay, Position: 10}, t0)
	require.NoError(t, err)
	require.Equal(t, 1, s.Seq)

	next, changed, err := s.Apply(Command{
		Action: ActionChangeEpisode,
		Media:  &Media{MovieId: "dune", EpisodeId: "2"},
	}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, next.Epoch)
	assert.Equal(t, 0, next.Seq)
	assert.Equal(t, StatusLoading, next.Status)
}

func TestApply_NoMedia(t *testing.T) {
	for _, a := range []Action{ActionPlay, ActionPause, ActionSeek, ActionSyncCurrentState} {
		_, changed, err := Initial().Apply(Command{Action: a, Position: 5}, t0)
		assert.ErrorIs(t, err, ErrNoMedia, a)
		assert.False(t, changed)
	}

	_, _, err := Initial().Apply(Command{Action: ActionChangeMovie}, t0)
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestApply_UnknownAction(t *testing.T) {
	_, _, err := loaded(t).Apply(Command{Action: "rewind"}, t0)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestApply_PauseIsIdempotent(t *testing.T) {
	s := loaded(t)

	s, changed, err := s.Apply(Command{Action: ActionPause, Position: 42}, t0)
	require.NoError(t, err)
	require.True(t, changed)
	seq := s.Seq

	again, changed, err := s.Apply(Command{Action: ActionPause, Position: 42}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, s, again)
	assert.Equal(t, seq, again.Seq)
}

func TestApply_SeekKeepsStatus(t *testing.T) {
	s := loaded(t)
	s, _, _ = s.Apply(Command{Action: ActionPlay, Position: 1}, t0)

	s, changed, err := s.Apply(Command{Action: ActionSeek, Position: 300}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 300.0, s.Position)
}

func TestApply_NegativePositionClamped(t *testing.T) {
	s, _, err := loaded(t).Apply(Command{Action: ActionSeek, Position: -4}, t0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Position)
}

func TestApply_SyncCurrentStateAlwaysBumps(t *testing.T) {
	s := loaded(t)
	s, _, _ = s.Apply(Command{Action: ActionPause, Position: 42}, t0)

	next, changed, err := s.Apply(Command{
		Action:    ActionSyncCurrentState,
		Position:  42,
		Media:     &Media{MovieId: "dune", EpisodeId: "1"},
		IsPlaying: false,
	}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, s.Seq+1, next.Seq)
	assert.Equal(t, s.Epoch, next.Epoch)

	other, _, err := next.Apply(Command{
		Action:    ActionSyncCurrentState,
		Position:  7,
		Media:     &Media{MovieId: "arrival", EpisodeId: "1"},
		IsPlaying: true,
	}, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, next.Epoch+1, other.Epoch)
	assert.Equal(t, 0, other.Seq)
	assert.Equal(t, StatusPlaying, other.Status)
	assert.Equal(t, 7.0, other.Position)
}

func TestAccept_Staleness(t *testing.T) {
	s := loaded(t)
	s5, _, _ := s.Apply(Command{Action: ActionPlay, Position: 5}, t0)
	s6, _, _ := s5.Apply(Command{Action: ActionPause, Position: 6}, t0)

	got, err := s6.Accept(s5)
	assert.ErrorIs(t, err, ErrStaleEvent)
	assert.Equal(t, s6, got)

	got, err = s6.Accept(s6)
	assert.ErrorIs(t, err, ErrStaleEvent)
	assert.Equal(t, s6, got)

	got, err = s5.Accept(s6)
	require.NoError(t, err)
	assert.Equal(t, s6, got)
}

func TestAccept_MediaChangeWithLowerSeq(t *testing.T) {
	s := loaded(t)
	for i := 0; i < 5; i++ {
		s, _, _ = s.Apply(Command{Action: ActionSeek, Position: float64(i + 1)}, t0)
	}

	changed, _, _ := s.Apply(Command{Action: ActionChangeEpisode, Media: &Media{MovieId: "dune", EpisodeId: "2"}}, t0)
	require.Less(t, changed.Seq, s.Seq)

	got, err := s.Accept(changed)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Media.EpisodeId)
}

func TestProject(t *testing.T) {
	s := State{Media: &Media{MovieId: "m"}, Status: StatusPlaying, Position: 10, UpdatedAt: t0}

	assert.InDelta(t, 14.0, s.Project(t0.Add(4*time.Second), 0), 1e-9)
	assert.InDelta(t, 12.0, s.Project(t0.Add(4*time.Second), 12), 1e-9)

	s.Status = StatusPaused
	assert.InDelta(t, 10.0, s.Project(t0.Add(time.Hour), 0), 1e-9)

	s.Status = StatusPlaying
	s.Position = 0
	assert.InDelta(t, 0.0, s.Project(t0.Add(-time.Second), 0), 1e-9)
}

func TestAction_HostOnly(t *testing.T) {
	assert.False(t, ActionRequestSync.HostOnly())
	assert.True(t, ActionPlay.HostOnly())
	assert.True(t, ActionSyncCurrentState.HostOnly())
}
