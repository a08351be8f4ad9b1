// services/kniffel_service.go
package services

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"game-night-server/models"

	"github.com/sirupsen/logrus"
)

// MaxRollsPerTurn is the number of rolls a player gets before they must commit.
const MaxRollsPerTurn = 3

// Roller produces random integers in [0, n).
type Roller interface {
	IntN(n int) int
}

// NewSeededRoller returns a PCG-backed roller seeded from the runtime random source.
func NewSeededRoller() Roller {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// KniffelService owns the authoritative dice table. Every exported method runs
// to completion under mu; broadcasts are issued before the lock is released so
// observers see transitions in commit order.
type KniffelService struct {
	mu sync.Mutex

	phase       models.KniffelPhase
	players     []models.Player
	scoreboards map[string][]models.ScoreRow
	totals      map[string]models.TotalScores
	activeID    string
	dice        [DiceCount]models.Die
	rolls       int
	notation    string
	rollSeq     int
	actionSeq   int

	roller  Roller
	out     Broadcaster
	actions ActionRecorder
	log     *logrus.Entry
}

func NewKniffelService(out Broadcaster, roller Roller, actions ActionRecorder, logger *logrus.Logger) *KniffelService {
	if roller == nil {
		roller = NewSeededRoller()
	}
	if actions == nil {
		actions = NoopActionLog{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &KniffelService{
		roller:  roller,
		out:     out,
		actions: actions,
		log:     logger.WithField("game", GameKniffel),
	}
	s.resetLocked()
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *KniffelService) Snapshot() models.KniffelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Join adds a player or, if the id is known, rebinds them to a new connection.
// The returned bool is true when a new player was added.
func (s *KniffelService) Join(playerID, name, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if playerID == "" {
		return false, validationf("playerId is required")
	}
	if idx := s.indexOf(playerID); idx >= 0 {
		s.players[idx].ConnectionID = connectionID
		s.log.WithFields(logrus.Fields{"player_id": playerID, "connection_id": connectionID}).Info("player reconnected")
		s.out.SendTo(connectionID, Event{Name: EventKniffelState, Data: s.snapshotLocked()})
		return false, nil
	}

	displayName, err := normalizeDisplayName(name)
	if err != nil {
		return false, err
	}
	if s.phase == models.KniffelFinished {
		return false, validationf("the game is finished, save it or start a new one first")
	}

	s.players = append(s.players, models.Player{
		PlayerID:     playerID,
		DisplayName:  displayName,
		ConnectionID: connectionID,
	})
	s.scoreboards[playerID] = NewScoreboard()
	s.totals[playerID] = models.TotalScores{}
	if s.phase == models.KniffelIdle {
		s.phase = models.KniffelPlaying
		s.activeID = playerID
	}

	s.log.WithFields(logrus.Fields{"player_id": playerID, "players": len(s.players)}).Info("player joined")
	s.record(playerID, "join", map[string]any{"name": displayName})
	s.broadcastLocked()
	return true, nil
}

// Roll re-randomizes every die that is not held.
func (s *KniffelService) Roll(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(playerID); err != nil {
		return err
	}
	if s.rolls >= MaxRollsPerTurn {
		return validationf("no rolls left, choose a category")
	}

	firstRoll := s.rolls == 0
	var rolled []string
	for i := range s.dice {
		if firstRoll {
			s.dice[i].IsHeld = false
		}
		if s.dice[i].IsHeld {
			continue
		}
		s.dice[i].Value = s.roller.IntN(DieFaces) + 1
		rolled = append(rolled, strconv.Itoa(s.dice[i].Value))
	}
	s.rolls++
	s.rollSeq++
	s.notation = fmt.Sprintf("%dd%d@%s", len(rolled), DieFaces, strings.Join(rolled, ","))

	if s.rolls == MaxRollsPerTurn {
		for i := range s.dice {
			s.dice[i].IsHeld = true
		}
	}

	if err := s.refreshPotentialsLocked(); err != nil {
		s.log.WithError(err).Error("potential score refresh failed")
	}

	s.record(playerID, "roll", map[string]any{"notation": s.notation, "roll": s.rolls})
	s.broadcastLocked()
	return nil
}

// ToggleHold flips the hold flag of one die between rolls.
func (s *KniffelService) ToggleHold(playerID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(playerID); err != nil {
		return err
	}
	if s.rolls == 0 {
		return validationf("roll before holding dice")
	}
	if s.rolls >= MaxRollsPerTurn {
		return validationf("dice are locked after the last roll")
	}
	if index < 0 || index >= DiceCount {
		return validationf("die index %d out of range", index)
	}

	s.dice[index].IsHeld = !s.dice[index].IsHeld
	s.record(playerID, "toggleHold", map[string]any{"index": index, "held": s.dice[index].IsHeld})
	s.broadcastLocked()
	return nil
}

// CommitScore writes the potential score of a category and passes the turn.
func (s *KniffelService) CommitScore(playerID string, category models.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(playerID); err != nil {
		return err
	}
	if s.rolls == 0 {
		return validationf("roll before choosing a category")
	}
	if _, ok := lookupCategory(category); !ok {
		return validationf("unknown category %q", category)
	}
	board := s.scoreboards[playerID]
	row := rowIndex(board, category)
	if board[row].IsSet {
		return validationf("category %q is already filled", category)
	}

	score := board[row].PotentialScore
	board[row].Score = &score
	board[row].IsSet = true
	for i := range board {
		board[i].PotentialScore = 0
	}
	s.totals[playerID] = ComputeTotals(board)
	s.clearTurnLocked()

	s.log.WithFields(logrus.Fields{"player_id": playerID, "category": category, "score": score}).Info("score committed")
	s.record(playerID, "commitScore", map[string]any{"categoryId": category, "score": score})

	if s.allCompleteLocked() {
		s.phase = models.KniffelFinished
		s.activeID = ""
		s.log.Info("game finished")
	} else {
		s.advanceFromLocked(s.indexOf(playerID) + 1)
	}

	s.broadcastLocked()
	return nil
}

// StartNewGame clears every scoreboard and hands the first turn to the first player.
func (s *KniffelService) StartNewGame(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := s.players
	s.resetLocked()
	for _, p := range players {
		s.players = append(s.players, p)
		s.scoreboards[p.PlayerID] = NewScoreboard()
		s.totals[p.PlayerID] = models.TotalScores{}
	}
	if len(s.players) > 0 {
		s.phase = models.KniffelPlaying
		s.activeID = s.players[0].PlayerID
	}

	s.log.WithField("players", len(s.players)).Info("new game started")
	s.record(callerID, "startNewGame", nil)
	s.broadcastLocked()
}

// SaveGame hands the finished game back to the caller for persistence and resets the table.
func (s *KniffelService) SaveGame(callerID string) (models.KniffelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.KniffelFinished {
		return models.KniffelResult{}, validationf("only a finished game can be saved")
	}

	result := s.resultLocked(time.Now().UTC())
	s.resetLocked()

	s.log.WithField("players", len(result.Scores)).Info("finished game handed to persistence")
	s.record(callerID, "saveGame", nil)
	s.broadcastLocked()
	return result, nil
}

// RemovePlayer drops every player bound to connectionID. Stale connection ids are ignored.
func (s *KniffelService) RemovePlayer(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if connectionID == "" {
		return false
	}
	kept := make([]models.Player, 0, len(s.players))
	activeAt := -1
	removed := 0
	for _, p := range s.players {
		if p.ConnectionID != connectionID {
			kept = append(kept, p)
			continue
		}
		if p.PlayerID == s.activeID {
			activeAt = len(kept)
		}
		removed++
		delete(s.scoreboards, p.PlayerID)
		delete(s.totals, p.PlayerID)
		s.log.WithFields(logrus.Fields{"player_id": p.PlayerID, "connection_id": connectionID}).Info("player left")
		s.record(p.PlayerID, "disconnect", nil)
	}
	if removed == 0 {
		return false
	}
	s.players = kept

	switch {
	case len(s.players) == 0:
		s.resetLocked()
	case s.phase != models.KniffelPlaying:
	case s.allCompleteLocked():
		s.phase = models.KniffelFinished
		s.activeID = ""
		s.clearTurnLocked()
	case activeAt >= 0:
		s.clearTurnLocked()
		s.advanceFromLocked(activeAt)
	}

	s.broadcastLocked()
	return true
}

// SendSnapshotTo sends the current state to one connection only.
func (s *KniffelService) SendSnapshotTo(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.SendTo(connectionID, Event{Name: EventKniffelState, Data: s.snapshotLocked()})
}

func (s *KniffelService) resetLocked() {
	s.phase = models.KniffelIdle
	s.players = nil
	s.scoreboards = make(map[string][]models.ScoreRow)
	s.totals = make(map[string]models.TotalScores)
	s.activeID = ""
	s.clearTurnLocked()
}

// clearTurnLocked empties the dice and the active player's potentials.
func (s *KniffelService) clearTurnLocked() {
	s.dice = [DiceCount]models.Die{}
	s.rolls = 0
	s.notation = ""
	if board, ok := s.scoreboards[s.activeID]; ok {
		for i := range board {
			board[i].PotentialScore = 0
		}
	}
}

func (s *KniffelService) requireActive(playerID string) error {
	if s.phase != models.KniffelPlaying {
		return validationf("no game in progress")
	}
	if s.indexOf(playerID) < 0 {
		return notFoundf("player %q is not at the table", playerID)
	}
	if playerID != s.activeID {
		return validationf("it is not your turn")
	}
	return nil
}

// advanceFromLocked makes the first player at or after start (wrapping) with
// an open category the active one.
func (s *KniffelService) advanceFromLocked(start int) {
	n := len(s.players)
	for step := 0; step < n; step++ {
		p := s.players[(start+step)%n]
		if !boardComplete(s.scoreboards[p.PlayerID]) {
			s.activeID = p.PlayerID
			return
		}
	}
	s.activeID = ""
}

func (s *KniffelService) refreshPotentialsLocked() error {
	var faces [DiceCount]int
	for i, d := range s.dice {
		faces[i] = d.Value
	}
	scores, err := ScoreAllCategories(faces)
	if err != nil {
		return err
	}
	board := s.scoreboards[s.activeID]
	for i := range board {
		if board[i].IsSet {
			board[i].PotentialScore = 0
			continue
		}
		board[i].PotentialScore = scores[board[i].ID]
	}
	return nil
}

func (s *KniffelService) allCompleteLocked() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, p := range s.players {
		if !boardComplete(s.scoreboards[p.PlayerID]) {
			return false
		}
	}
	return true
}

func (s *KniffelService) indexOf(playerID string) int {
	for i, p := range s.players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (s *KniffelService) resultLocked(at time.Time) models.KniffelResult {
	scores := make([]models.KniffelFinalScore, len(s.players))
	for i, p := range s.players {
		scores[i] = models.KniffelFinalScore{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Totals:      s.totals[p.PlayerID],
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Totals.GrandTotal > scores[j].Totals.GrandTotal
	})
	for i := range scores {
		if i > 0 && scores[i].Totals.GrandTotal == scores[i-1].Totals.GrandTotal {
			scores[i].Rank = scores[i-1].Rank
		} else {
			scores[i].Rank = i + 1
		}
	}
	return models.KniffelResult{FinishedAt: at, Scores: scores}
}

func (s *KniffelService) snapshotLocked() models.KniffelState {
	state := models.KniffelState{
		Phase:            s.phase,
		IsActive:         s.phase == models.KniffelPlaying,
		Players:          make([]models.Player, len(s.players)),
		Scoreboards:      make(map[string][]models.ScoreRow, len(s.scoreboards)),
		TotalScores:      make(map[string]models.TotalScores, len(s.totals)),
		ActivePlayerID:   s.activeID,
		Dice:             make([]models.Die, DiceCount),
		RollCount:        s.rolls,
		LastRollNotation: s.notation,
		RollSeq:          s.rollSeq,
	}
	copy(state.Players, s.players)
	copy(state.Dice, s.dice[:])
	for id, board := range s.scoreboards {
		rows := make([]models.ScoreRow, len(board))
		for i, row := range board {
			if row.Score != nil {
				v := *row.Score
				row.Score = &v
			}
			rows[i] = row
		}
		state.Scoreboards[id] = rows
	}
	for id, t := range s.totals {
		state.TotalScores[id] = t
	}
	return state
}

func (s *KniffelService) broadcastLocked() {
	s.out.Broadcast(Event{Name: EventKniffelState, Data: s.snapshotLocked()})
}

func (s *KniffelService) record(actorID, action string, payload map[string]any) {
	s.actionSeq++
	s.actions.Record(ActionRecord{
		Game:      GameKniffel,
		Seq:       s.actionSeq,
		ActorID:   actorID,
		Action:    action,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

func rowIndex(board []models.ScoreRow, id models.CategoryID) int {
	for i, row := range board {
		if row.ID == id {
			return i
		}
	}
	return -1
}

func boardComplete(board []models.ScoreRow) bool {
	for _, row := range board {
		if !row.IsSet {
			return false
		}
	}
	return len(board) > 0
}
