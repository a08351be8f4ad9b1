// services/olympiade_service.go
package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"game-night-server/models"

	"github.com/sirupsen/logrus"
)

// DefaultSpinDelay matches the client's wheel animation.
const DefaultSpinDelay = 5200 * time.Millisecond

// OlympiadeService owns the tournament state. All mutations, including the
// delayed spin commit, run under mu.
type OlympiadeService struct {
	mu sync.Mutex

	active      bool
	games       []models.GameRef
	players     []models.OlympiadePlayer
	current     int
	results     []models.RoundResult
	spinPending bool
	epoch       int
	actionSeq   int

	spinDelay time.Duration
	deferrer  Deferrer
	roller    Roller
	out       Broadcaster
	actions   ActionRecorder
	log       *logrus.Entry
}

func NewOlympiadeService(out Broadcaster, deferrer Deferrer, roller Roller, spinDelay time.Duration, actions ActionRecorder, logger *logrus.Logger) *OlympiadeService {
	if roller == nil {
		roller = NewSeededRoller()
	}
	if actions == nil {
		actions = NoopActionLog{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if spinDelay < 0 {
		spinDelay = DefaultSpinDelay
	}
	return &OlympiadeService{
		current:   models.NoGameSelected,
		spinDelay: spinDelay,
		deferrer:  deferrer,
		roller:    roller,
		out:       out,
		actions:   actions,
		log:       logger.WithField("game", GameOlympiade),
	}
}

// Snapshot returns a copy of the tournament state.
func (s *OlympiadeService) Snapshot() models.OlympiadeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start opens a tournament over games, in the given order.
func (s *OlympiadeService) Start(callerID string, games []models.GameRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return validationf("an olympiade is already running, end it first")
	}
	if len(games) == 0 {
		return validationf("select at least one game")
	}
	seen := make(map[string]bool, len(games))
	for _, g := range games {
		if seen[g.ID] {
			return validationf("game %q is selected twice", g.Name)
		}
		seen[g.ID] = true
	}

	s.resetLocked()
	s.active = true
	s.games = append([]models.GameRef(nil), games...)

	s.log.WithField("games", len(games)).Info("olympiade started")
	s.record(callerID, "startOlympiade", map[string]any{"gameIds": gameIDs(games)})
	s.broadcastLocked()
	return nil
}

// Join adds a player with score 0 or rebinds a known player to connectionID.
func (s *OlympiadeService) Join(playerID, name, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false, validationf("no olympiade is running")
	}
	if playerID == "" {
		return false, validationf("playerId is required")
	}
	if idx := s.indexOf(playerID); idx >= 0 {
		s.players[idx].ConnectionID = connectionID
		s.log.WithFields(logrus.Fields{"player_id": playerID, "connection_id": connectionID}).Info("player reconnected")
		s.out.SendTo(connectionID, Event{Name: EventOlympiadeStatus, Data: s.snapshotLocked()})
		return false, nil
	}
	displayName, err := normalizeDisplayName(name)
	if err != nil {
		return false, err
	}

	s.players = append(s.players, models.OlympiadePlayer{
		PlayerID:     playerID,
		DisplayName:  displayName,
		ConnectionID: connectionID,
	})
	s.log.WithFields(logrus.Fields{"player_id": playerID, "players": len(s.players)}).Info("player joined")
	s.record(playerID, "joinOlympiade", map[string]any{"name": displayName})
	s.broadcastLocked()
	return true, nil
}

// SelectNextGame picks the next mini-game. Manual selection applies at once;
// random selection announces the target and commits it after the spin delay.
func (s *OlympiadeService) SelectNextGame(callerID string, mode models.SelectionMode, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return validationf("no olympiade is running")
	}
	if len(s.players) == 0 {
		return validationf("at least one player must join before a game is selected")
	}
	if len(s.results) >= len(s.games) {
		return validationf("every game has been played")
	}
	if s.spinPending {
		return validationf("a game selection is already in progress")
	}
	if s.current != models.NoGameSelected {
		return validationf("declare a winner for %q first", s.games[s.current].Name)
	}

	switch mode {
	case models.SelectManual:
		if gameID == "" {
			return validationf("gameId is required for manual selection")
		}
		idx := s.gameIndex(gameID)
		if idx < 0 {
			return notFoundf("game %q is not part of this olympiade", gameID)
		}
		if s.played(gameID) {
			return validationf("%q has already been played", s.games[idx].Name)
		}
		s.current = idx
		s.log.WithField("game_id", gameID).Info("game selected")
		s.record(callerID, "selectNextGame", map[string]any{"mode": mode, "gameId": gameID})
		s.broadcastLocked()
		return nil

	case models.SelectRandom:
		pool := s.unplayedLocked()
		target := pool[s.roller.IntN(len(pool))]
		targetIdx := s.gameIndex(target.ID)
		epoch := s.epoch

		if err := s.deferrer.After(s.spinDelay, func() { s.commitSpin(epoch, targetIdx) }); err != nil {
			return fmt.Errorf("schedule spin commit: %w", err)
		}
		s.spinPending = true

		s.log.WithFields(logrus.Fields{"game_id": target.ID, "candidates": len(pool)}).Info("spin announced")
		s.record(callerID, "selectNextGame", map[string]any{"mode": mode, "gameId": target.ID})
		s.out.Broadcast(Event{Name: EventSpinAnnounced, Data: models.SpinAnnouncement{
			TargetGameID:  target.ID,
			CandidatePool: pool,
		}})
		s.broadcastLocked()
		return nil

	default:
		return validationf("unknown selection mode %q", mode)
	}
}

// commitSpin applies an announced random selection. It does nothing if the
// tournament was ended or restarted after the announcement.
func (s *OlympiadeService) commitSpin(epoch, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.spinPending {
		s.log.WithField("epoch", epoch).Debug("stale spin commit ignored")
		return
	}
	s.spinPending = false
	s.current = idx

	s.log.WithField("game_id", s.games[idx].ID).Info("spin committed")
	s.record("", "spinCommitted", map[string]any{"gameId": s.games[idx].ID})
	s.broadcastLocked()
}

// DeclareWinner judges the selected game. The round number doubles as the
// points awarded.
func (s *OlympiadeService) DeclareWinner(callerID, winnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return validationf("no olympiade is running")
	}
	if s.spinPending {
		return validationf("wait for the game selection to finish")
	}
	if s.current == models.NoGameSelected {
		return validationf("no game is selected")
	}
	game := s.games[s.current]
	if s.played(game.ID) {
		return validationf("%q has already been judged", game.Name)
	}
	w := s.indexOf(winnerID)
	if w < 0 {
		return notFoundf("player %q is not in the olympiade", winnerID)
	}

	round := len(s.results) + 1
	s.results = append(s.results, models.RoundResult{
		GameID:         game.ID,
		RoundNumber:    round,
		WinnerPlayerID: winnerID,
		PointsAwarded:  round,
	})
	s.players[w].Score += round
	s.current = models.NoGameSelected

	s.log.WithFields(logrus.Fields{"game_id": game.ID, "round": round, "winner": winnerID}).Info("winner declared")
	s.record(callerID, "declareWinner", map[string]any{"gameId": game.ID, "winnerPlayerId": winnerID, "points": round})
	s.broadcastLocked()

	if len(s.results) == len(s.games) {
		s.log.Info("olympiade complete")
		s.out.Broadcast(Event{Name: EventOlympiadeFinished, Data: models.TournamentFinished{
			Results:   append([]models.RoundResult(nil), s.results...),
			Standings: s.standingsLocked(),
		}})
	}
	return nil
}

// End resets the tournament to idle. The returned result is nil when no
// tournament was running.
func (s *OlympiadeService) End(callerID string) *models.OlympiadeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *models.OlympiadeResult
	if s.active {
		snap := s.snapshotLocked()
		result = &models.OlympiadeResult{
			Games:    snap.SelectedGamesList,
			Players:  snap.Players,
			Results:  snap.Results,
			Finished: len(s.results) == len(s.games),
			EndedAt:  time.Now().UTC(),
		}
	}

	s.resetLocked()
	s.log.WithField("had_tournament", result != nil).Info("olympiade ended")
	s.record(callerID, "endOlympiade", nil)
	s.broadcastLocked()
	return result
}

// RemovePlayer drops every player bound to connectionID. Results and the
// current selection are left alone.
func (s *OlympiadeService) RemovePlayer(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if connectionID == "" {
		return false
	}
	kept := make([]models.OlympiadePlayer, 0, len(s.players))
	for _, p := range s.players {
		if p.ConnectionID != connectionID {
			kept = append(kept, p)
			continue
		}
		s.log.WithFields(logrus.Fields{"player_id": p.PlayerID, "connection_id": connectionID}).Info("player left")
		s.record(p.PlayerID, "disconnect", nil)
	}
	if len(kept) == len(s.players) {
		return false
	}
	s.players = kept
	s.broadcastLocked()
	return true
}

// SendSnapshotTo sends the current status to one connection only.
func (s *OlympiadeService) SendSnapshotTo(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.SendTo(connectionID, Event{Name: EventOlympiadeStatus, Data: s.snapshotLocked()})
}

// Standings ranks the current roster by score.
func (s *OlympiadeService) Standings() []models.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standingsLocked()
}

func (s *OlympiadeService) resetLocked() {
	s.active = false
	s.games = nil
	s.players = nil
	s.results = nil
	s.current = models.NoGameSelected
	s.spinPending = false
	s.epoch++
}

func (s *OlympiadeService) standingsLocked() []models.Standing {
	out := make([]models.Standing, len(s.players))
	for i, p := range s.players {
		out[i] = models.Standing{PlayerID: p.PlayerID, DisplayName: p.DisplayName, Score: p.Score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

func (s *OlympiadeService) unplayedLocked() []models.GameRef {
	var pool []models.GameRef
	for _, g := range s.games {
		if !s.played(g.ID) {
			pool = append(pool, g)
		}
	}
	return pool
}

func (s *OlympiadeService) played(gameID string) bool {
	for _, r := range s.results {
		if r.GameID == gameID {
			return true
		}
	}
	return false
}

func (s *OlympiadeService) gameIndex(gameID string) int {
	for i, g := range s.games {
		if g.ID == gameID {
			return i
		}
	}
	return -1
}

func (s *OlympiadeService) indexOf(playerID string) int {
	for i, p := range s.players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (s *OlympiadeService) snapshotLocked() models.OlympiadeState {
	return models.OlympiadeState{
		IsActive:          s.active,
		SelectedGamesList: append([]models.GameRef{}, s.games...),
		Players:           append([]models.OlympiadePlayer{}, s.players...),
		CurrentGameIndex:  s.current,
		Results:           append([]models.RoundResult{}, s.results...),
		SpinPending:       s.spinPending,
	}
}

func (s *OlympiadeService) broadcastLocked() {
	s.out.Broadcast(Event{Name: EventOlympiadeStatus, Data: s.snapshotLocked()})
}

func (s *OlympiadeService) record(actorID, action string, payload map[string]any) {
	s.actionSeq++
	s.actions.Record(ActionRecord{
		Game:      GameOlympiade,
		Seq:       s.actionSeq,
		ActorID:   actorID,
		Action:    action,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

func gameIDs(games []models.GameRef) []string {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids
}
