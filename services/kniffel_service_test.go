package services

import (
	"testing"

	"game-night-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKniffel(t *testing.T) (*KniffelService, *mockBroadcaster, *scriptedRoller) {
	t.Helper()
	out := &mockBroadcaster{}
	roller := &scriptedRoller{}
	return NewKniffelService(out, roller, nil, quietLogger()), out, roller
}

func joinAll(t *testing.T, s *KniffelService, ids ...string) {
	t.Helper()
	for _, id := range ids {
		added, err := s.Join(id, "Player "+id, "conn-"+id)
		require.NoError(t, err)
		require.True(t, added)
	}
}

func scoreOf(state models.KniffelState, playerID string, id models.CategoryID) models.ScoreRow {
	for _, row := range state.Scoreboards[playerID] {
		if row.ID == id {
			return row
		}
	}
	return models.ScoreRow{}
}

func TestKniffelFirstJoinStartsGame(t *testing.T) {
	s, out, _ := newTestKniffel(t)

	added, err := s.Join("a", "  Anna ", "c1")
	require.NoError(t, err)
	assert.True(t, added)

	state := s.Snapshot()
	assert.Equal(t, models.KniffelPlaying, state.Phase)
	assert.True(t, state.IsActive)
	assert.Equal(t, "a", state.ActivePlayerID)
	require.Len(t, state.Players, 1)
	assert.Equal(t, "Anna", state.Players[0].DisplayName)
	assert.Len(t, state.Scoreboards["a"], len(Categories))
	assert.Len(t, out.named(EventKniffelState), 1)
}

func TestKniffelJoinValidation(t *testing.T) {
	s, _, _ := newTestKniffel(t)

	_, err := s.Join("", "Anna", "c1")
	assert.True(t, IsValidation(err))

	_, err = s.Join("a", "   ", "c1")
	assert.True(t, IsValidation(err))

	assert.Equal(t, models.KniffelIdle, s.Snapshot().Phase)
}

func TestKniffelRejoinOnlyUpdatesConnection(t *testing.T) {
	s, out, roller := newTestKniffel(t)
	joinAll(t, s, "a", "b")
	roller.queue(2, 2, 3, 4, 5)
	require.NoError(t, s.Roll("a"))
	before := s.Snapshot()
	out.reset()

	added, err := s.Join("a", "Someone Else", "c-new")
	require.NoError(t, err)
	assert.False(t, added)

	after := s.Snapshot()
	assert.Equal(t, before.Dice, after.Dice)
	assert.Equal(t, before.RollCount, after.RollCount)
	assert.Equal(t, "Player a", after.Players[0].DisplayName)
	assert.Equal(t, "c-new", after.Players[0].ConnectionID)

	// only the reconnecting caller gets a snapshot
	require.Len(t, out.events, 1)
	assert.Equal(t, "c-new", out.events[0].To)

	// the old connection closing must not remove the player
	assert.False(t, s.RemovePlayer("conn-a"))
	assert.Len(t, s.Snapshot().Players, 2)
}

func TestKniffelRollHoldAndLock(t *testing.T) {
	s, _, roller := newTestKniffel(t)
	joinAll(t, s, "a", "b")

	roller.queue(1, 1, 1, 4, 5)
	require.NoError(t, s.Roll("a"))
	state := s.Snapshot()
	assert.Equal(t, 1, state.RollCount)
	assert.Equal(t, "5d6@1,1,1,4,5", state.LastRollNotation)
	assert.Equal(t, 12, scoreOf(state, "a", models.CategoryThreeOfAKind).PotentialScore)
	assert.Equal(t, 12, scoreOf(state, "a", models.CategoryChance).PotentialScore)
	assert.Equal(t, 0, scoreOf(state, "a", models.CategoryFullHouse).PotentialScore)

	for _, i := range []int{0, 1, 2} {
		require.NoError(t, s.ToggleHold("a", i))
	}
	roller.queue(6, 6)
	require.NoError(t, s.Roll("a"))
	state = s.Snapshot()
	assert.Equal(t, "2d6@6,6", state.LastRollNotation)
	assert.Equal(t, []models.Die{
		{Value: 1, IsHeld: true}, {Value: 1, IsHeld: true}, {Value: 1, IsHeld: true},
		{Value: 6}, {Value: 6},
	}, state.Dice)
	assert.Equal(t, FullHouseScore, scoreOf(state, "a", models.CategoryFullHouse).PotentialScore)

	roller.queue(1, 1)
	require.NoError(t, s.Roll("a"))
	state = s.Snapshot()
	assert.Equal(t, MaxRollsPerTurn, state.RollCount)
	for _, d := range state.Dice {
		assert.True(t, d.IsHeld)
		assert.Equal(t, 1, d.Value)
	}
	assert.Equal(t, KniffelScore, scoreOf(state, "a", models.CategoryKniffel).PotentialScore)

	assert.True(t, IsValidation(s.ToggleHold("a", 3)))
	assert.True(t, IsValidation(s.Roll("a")))
	assert.Equal(t, state, s.Snapshot())
}

func TestKniffelToggleHoldBounds(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a")

	assert.True(t, IsValidation(s.ToggleHold("a", 0)), "hold before first roll")
	require.NoError(t, s.Roll("a"))
	assert.True(t, IsValidation(s.ToggleHold("a", -1)))
	assert.True(t, IsValidation(s.ToggleHold("a", DiceCount)))

	require.NoError(t, s.ToggleHold("a", 4))
	assert.True(t, s.Snapshot().Dice[4].IsHeld)
	require.NoError(t, s.ToggleHold("a", 4))
	assert.False(t, s.Snapshot().Dice[4].IsHeld)
}

func TestKniffelOutOfTurnRejected(t *testing.T) {
	s, out, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b")
	before := s.Snapshot()
	out.reset()

	err := s.Roll("b")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.True(t, IsNotFound(s.Roll("ghost")))
	assert.True(t, IsValidation(s.CommitScore("b", models.CategoryChance)))

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, out.events)
}

func TestKniffelCommitAdvancesTurn(t *testing.T) {
	s, _, roller := newTestKniffel(t)
	joinAll(t, s, "a", "b", "c")

	assert.True(t, IsValidation(s.CommitScore("a", models.CategoryChance)), "commit before roll")

	roller.queue(2, 2, 2, 3, 3)
	require.NoError(t, s.Roll("a"))
	assert.True(t, IsValidation(s.CommitScore("a", "bogus")))
	require.NoError(t, s.CommitScore("a", models.CategoryFullHouse))

	state := s.Snapshot()
	assert.Equal(t, "b", state.ActivePlayerID)
	assert.Equal(t, 0, state.RollCount)
	assert.Equal(t, make([]models.Die, DiceCount), state.Dice)
	row := scoreOf(state, "a", models.CategoryFullHouse)
	require.NotNil(t, row.Score)
	assert.Equal(t, 25, *row.Score)
	assert.True(t, row.IsSet)
	for _, r := range state.Scoreboards["a"] {
		assert.Zero(t, r.PotentialScore)
	}
	assert.Equal(t, 25, state.TotalScores["a"].GrandTotal)

	require.NoError(t, s.Roll("b"))
	require.NoError(t, s.CommitScore("b", models.CategoryChance))
	require.NoError(t, s.Roll("c"))
	require.NoError(t, s.CommitScore("c", models.CategoryChance))
	assert.Equal(t, "a", s.Snapshot().ActivePlayerID, "turn order wraps")

	require.NoError(t, s.Roll("a"))
	before := s.Snapshot()
	err := s.CommitScore("a", models.CategoryFullHouse)
	assert.True(t, IsValidation(err), "committed category cannot be reused")
	assert.Equal(t, before, s.Snapshot())
}

func TestKniffelActiveDisconnectPassesTurn(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b", "c")

	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.CommitScore("a", models.CategoryChance))
	require.NoError(t, s.Roll("b"))

	assert.True(t, s.RemovePlayer("conn-b"))
	state := s.Snapshot()
	assert.Equal(t, "c", state.ActivePlayerID)
	assert.Equal(t, 0, state.RollCount)
	assert.NotContains(t, state.Scoreboards, "b")
	assert.Len(t, state.Players, 2)

	require.NoError(t, s.Roll("c"))
	assert.True(t, s.RemovePlayer("conn-c"))
	assert.Equal(t, "a", s.Snapshot().ActivePlayerID, "removing the last seat wraps to the first")
}

func TestKniffelInactiveDisconnectKeepsTurn(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b", "c")
	require.NoError(t, s.Roll("a"))

	assert.True(t, s.RemovePlayer("conn-c"))
	state := s.Snapshot()
	assert.Equal(t, "a", state.ActivePlayerID)
	assert.Equal(t, 1, state.RollCount)
}

func TestKniffelLastPlayerLeavingResets(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a")
	require.NoError(t, s.Roll("a"))

	assert.True(t, s.RemovePlayer("conn-a"))
	state := s.Snapshot()
	assert.Equal(t, models.KniffelIdle, state.Phase)
	assert.Empty(t, state.Players)
	assert.Empty(t, state.ActivePlayerID)
	assert.False(t, s.RemovePlayer("unknown"))
}

func playFullGame(t *testing.T, s *KniffelService, ids ...string) {
	t.Helper()
	for _, c := range Categories {
		for _, id := range ids {
			require.NoError(t, s.Roll(id))
			require.NoError(t, s.CommitScore(id, c.ID))
		}
	}
}

func TestKniffelFinishAndSave(t *testing.T) {
	s, out, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b")

	_, err := s.SaveGame("a")
	assert.True(t, IsValidation(err), "save before finish")

	playFullGame(t, s, "a", "b")
	state := s.Snapshot()
	assert.Equal(t, models.KniffelFinished, state.Phase)
	assert.False(t, state.IsActive)
	assert.Empty(t, state.ActivePlayerID)
	assert.True(t, IsValidation(s.Roll("a")))

	_, err = s.Join("c", "Late", "conn-c")
	assert.True(t, IsValidation(err), "join while finished")

	out.reset()
	result, err := s.SaveGame("a")
	require.NoError(t, err)
	require.Len(t, result.Scores, 2)
	// all dice roll ones with the default script, so both players tie
	assert.Equal(t, 1, result.Scores[0].Rank)
	assert.Equal(t, 1, result.Scores[1].Rank)
	assert.Equal(t, result.Scores[0].Totals, result.Scores[1].Totals)
	assert.False(t, result.FinishedAt.IsZero())

	state = s.Snapshot()
	assert.Equal(t, models.KniffelIdle, state.Phase)
	assert.Empty(t, state.Players)
	assert.Len(t, out.named(EventKniffelState), 1)
}

func TestKniffelStartNewGameKeepsRoster(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b")
	playFullGame(t, s, "a", "b")

	s.StartNewGame("b")
	state := s.Snapshot()
	assert.Equal(t, models.KniffelPlaying, state.Phase)
	assert.Equal(t, "a", state.ActivePlayerID)
	assert.Len(t, state.Players, 2)
	for _, id := range []string{"a", "b"} {
		for _, row := range state.Scoreboards[id] {
			assert.False(t, row.IsSet)
		}
		assert.Equal(t, models.TotalScores{}, state.TotalScores[id])
	}
}

func TestKniffelLateJoinerIsSkippedWhenComplete(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a")
	for _, c := range Categories[:len(Categories)-1] {
		require.NoError(t, s.Roll("a"))
		require.NoError(t, s.CommitScore("a", c.ID))
	}
	joinAll(t, s, "b")

	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.CommitScore("a", models.CategoryChance))
	assert.Equal(t, "b", s.Snapshot().ActivePlayerID)

	require.NoError(t, s.Roll("b"))
	require.NoError(t, s.CommitScore("b", models.CategoryOnes))
	assert.Equal(t, "b", s.Snapshot().ActivePlayerID, "a has no open category")
}

func TestKniffelSnapshotIsDeepCopy(t *testing.T) {
	s, _, roller := newTestKniffel(t)
	joinAll(t, s, "a")
	roller.queue(3, 3, 3, 3, 3)
	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.CommitScore("a", models.CategoryThrees))

	snap := s.Snapshot()
	*snap.Scoreboards["a"][2].Score = 99
	snap.Players[0].DisplayName = "changed"
	snap.Dice[0].Value = 6

	fresh := s.Snapshot()
	assert.Equal(t, 15, *fresh.Scoreboards["a"][2].Score)
	assert.Equal(t, "Player a", fresh.Players[0].DisplayName)
	assert.Equal(t, 0, fresh.Dice[0].Value)
}

func TestKniffelRollSeqCountsEveryRoll(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b")
	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.CommitScore("a", models.CategoryOnes))
	require.NoError(t, s.Roll("b"))
	assert.Equal(t, 3, s.Snapshot().RollSeq)
}

func TestKniffelRemovePlayerDropsEverySeatOfConnection(t *testing.T) {
	s, _, _ := newTestKniffel(t)
	joinAll(t, s, "a", "b")
	added, err := s.Join("c", "Player c", "conn-b")
	require.NoError(t, err)
	require.True(t, added)

	_, err = s.Join("d", "Player d", "conn-d")
	require.NoError(t, err)
	require.NoError(t, s.Roll("a"))
	require.NoError(t, s.CommitScore("a", models.CategoryChance))
	require.Equal(t, "b", s.Snapshot().ActivePlayerID)

	assert.True(t, s.RemovePlayer("conn-b"))

	state := s.Snapshot()
	require.Len(t, state.Players, 2)
	assert.Equal(t, "a", state.Players[0].PlayerID)
	assert.Equal(t, "d", state.Players[1].PlayerID)
	assert.Equal(t, "d", state.ActivePlayerID)
	assert.Equal(t, 0, state.RollCount)
	assert.False(t, s.RemovePlayer("conn-b"))
}

func TestKniffelSendSnapshotToTargetsOneConnection(t *testing.T) {
	s, out, _ := newTestKniffel(t)
	joinAll(t, s, "a")
	out.reset()

	s.SendSnapshotTo("conn-x")

	require.Len(t, out.events, 1)
	sent := out.last()
	assert.Equal(t, "conn-x", sent.To)
	assert.Equal(t, EventKniffelState, sent.Event.Name)
	assert.Equal(t, s.Snapshot(), sent.Event.Data)
}
