package services

import (
	"context"
	"time"

	"game-night-server/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Inbound Kniffel actions.
const (
	ActionJoin         = "join"
	ActionRoll         = "roll"
	ActionToggleHold   = "toggleHold"
	ActionCommitScore  = "commitScore"
	ActionStartNewGame = "startNewGame"
	ActionSaveGame     = "saveGame"
)

// Inbound Olympiade actions.
const (
	ActionStartOlympiade = "startOlympiade"
	ActionJoinOlympiade  = "joinOlympiade"
	ActionSelectNextGame = "selectNextGame"
	ActionDeclareWinner  = "declareWinner"
	ActionEndOlympiade   = "endOlympiade"
)

// KniffelAction is the union of every Kniffel action payload.
type KniffelAction struct {
	PlayerID   string            `json:"playerId"`
	Name       string            `json:"name"`
	Index      *int              `json:"index"`
	CategoryID models.CategoryID `json:"categoryId"`
}

// OlympiadeAction is the union of every Olympiade action payload.
type OlympiadeAction struct {
	GameIDs        []string             `json:"gameIds"`
	PlayerID       string               `json:"playerId"`
	Name           string               `json:"name"`
	Mode           models.SelectionMode `json:"mode"`
	GameID         string               `json:"gameId"`
	WinnerPlayerID string               `json:"winnerPlayerId"`
}

// ConnectedPayload is the first event on every stream.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// GameCatalog resolves mini-game ids.
type GameCatalog interface {
	GamesByIDs(ctx context.Context, ids []string) ([]models.GameRef, error)
}

// Coordinator routes actions from connections to the two engines and turns
// stream disconnects into roster removals.
type Coordinator struct {
	Kniffel   *KniffelService
	Olympiade *OlympiadeService

	hub      *Hub
	registry *SessionRegistry
	catalog  GameCatalog
	history  HistoryQueue
	log      *logrus.Entry
}

func NewCoordinator(hub *Hub, registry *SessionRegistry, kniffel *KniffelService, olympiade *OlympiadeService,
	catalog GameCatalog, history HistoryQueue, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Coordinator{
		Kniffel:   kniffel,
		Olympiade: olympiade,
		hub:       hub,
		registry:  registry,
		catalog:   catalog,
		history:   history,
		log:       logger.WithField("component", "coordinator"),
	}
}

// Connect opens a session and its event stream, then sends the greeting and
// both snapshots to it.
func (c *Coordinator) Connect() *Subscriber {
	connID := uuid.NewString()
	sub := c.hub.Subscribe(connID)
	c.registry.Open(connID)

	c.hub.SendTo(connID, Event{Name: EventConnected, Data: ConnectedPayload{ConnectionID: connID}})
	c.Kniffel.SendSnapshotTo(connID)
	c.Olympiade.SendSnapshotTo(connID)

	c.log.WithFields(logrus.Fields{"connection_id": connID, "open": c.registry.Count()}).Info("client connected")
	return sub
}

// Disconnect closes the session and removes whatever players it held.
func (c *Coordinator) Disconnect(connectionID string) {
	sess, ok := c.registry.Close(connectionID)
	c.hub.Unsubscribe(connectionID)
	if !ok {
		return
	}
	removedK := c.Kniffel.RemovePlayer(connectionID)
	removedO := c.Olympiade.RemovePlayer(connectionID)

	c.log.WithFields(logrus.Fields{
		"connection_id":  connectionID,
		"players":        sess.Players,
		"left_kniffel":   removedK,
		"left_olympiade": removedO,
		"duration":       time.Since(sess.OpenedAt).Round(time.Second).String(),
	}).Info("client disconnected")
}

// HandleKniffel applies one Kniffel action for connectionID.
func (c *Coordinator) HandleKniffel(ctx context.Context, connectionID, event string, act KniffelAction) (models.KniffelState, error) {
	if err := c.dispatchKniffel(ctx, connectionID, event, act); err != nil {
		c.reject(connectionID, EventKniffelError, event, err)
		return models.KniffelState{}, err
	}
	return c.Kniffel.Snapshot(), nil
}

func (c *Coordinator) dispatchKniffel(_ context.Context, connID, event string, act KniffelAction) error {
	if !c.registry.Has(connID) {
		return notFoundf("unknown connection, open the event stream first")
	}
	if event == ActionJoin {
		return c.joinKniffel(connID, act)
	}

	playerID, ok := c.registry.PlayerFor(connID, GameKniffel)
	if !ok {
		return validationf("join the game first")
	}

	switch event {
	case ActionRoll:
		return c.Kniffel.Roll(playerID)
	case ActionToggleHold:
		if act.Index == nil {
			return validationf("index is required")
		}
		return c.Kniffel.ToggleHold(playerID, *act.Index)
	case ActionCommitScore:
		if act.CategoryID == "" {
			return validationf("categoryId is required")
		}
		return c.Kniffel.CommitScore(playerID, act.CategoryID)
	case ActionStartNewGame:
		c.Kniffel.StartNewGame(playerID)
		return nil
	case ActionSaveGame:
		result, err := c.Kniffel.SaveGame(playerID)
		if err != nil {
			return err
		}
		c.persist(connID, EventKniffelError, HistoryJob{Kniffel: &result}, func() {
			c.hub.SendTo(connID, Event{Name: EventKniffelSaved, Data: struct{}{}})
		})
		return nil
	default:
		return notFoundf("unknown kniffel event %q", event)
	}
}

// HandleOlympiade applies one Olympiade action for connectionID.
func (c *Coordinator) HandleOlympiade(ctx context.Context, connectionID, event string, act OlympiadeAction) (models.OlympiadeState, error) {
	if err := c.dispatchOlympiade(ctx, connectionID, event, act); err != nil {
		c.reject(connectionID, EventOlympiadeError, event, err)
		return models.OlympiadeState{}, err
	}
	return c.Olympiade.Snapshot(), nil
}

func (c *Coordinator) dispatchOlympiade(ctx context.Context, connID, event string, act OlympiadeAction) error {
	if !c.registry.Has(connID) {
		return notFoundf("unknown connection, open the event stream first")
	}
	actor, _ := c.registry.PlayerFor(connID, GameOlympiade)

	switch event {
	case ActionStartOlympiade:
		if len(act.GameIDs) == 0 {
			return validationf("select at least one game")
		}
		if c.Olympiade.Snapshot().IsActive {
			return validationf("an olympiade is already running, end it first")
		}
		games, err := c.catalog.GamesByIDs(ctx, act.GameIDs)
		if err != nil {
			return err
		}
		return c.Olympiade.Start(actor, games)
	case ActionJoinOlympiade:
		return c.joinOlympiade(connID, act)
	case ActionSelectNextGame:
		mode := act.Mode
		if mode == "" {
			mode = models.SelectRandom
		}
		return c.Olympiade.SelectNextGame(actor, mode, act.GameID)
	case ActionDeclareWinner:
		if act.WinnerPlayerID == "" {
			return validationf("winnerPlayerId is required")
		}
		return c.Olympiade.DeclareWinner(actor, act.WinnerPlayerID)
	case ActionEndOlympiade:
		if result := c.Olympiade.End(actor); result != nil {
			c.persist(connID, EventOlympiadeError, HistoryJob{Olympiade: result}, nil)
		}
		return nil
	default:
		return notFoundf("unknown olympiade event %q", event)
	}
}

// joinKniffel seats the player and binds it to connID. A connection that
// closed in between gets its seat taken away again.
func (c *Coordinator) joinKniffel(connID string, act KniffelAction) error {
	if _, err := c.Kniffel.Join(act.PlayerID, act.Name, connID); err != nil {
		return err
	}
	if err := c.registry.Bind(connID, GameKniffel, act.PlayerID); err != nil {
		c.Kniffel.RemovePlayer(connID)
		return err
	}
	return nil
}

func (c *Coordinator) joinOlympiade(connID string, act OlympiadeAction) error {
	if _, err := c.Olympiade.Join(act.PlayerID, act.Name, connID); err != nil {
		return err
	}
	if err := c.registry.Bind(connID, GameOlympiade, act.PlayerID); err != nil {
		c.Olympiade.RemovePlayer(connID)
		return err
	}
	return nil
}

// persist queues job for the history worker. Failures reach the caller as a
// best-effort error event; the in-memory reset already happened.
func (c *Coordinator) persist(connID, errorEvent string, job HistoryJob, onSaved func()) {
	if c.history == nil {
		if onSaved != nil {
			onSaved()
		}
		return
	}
	job.Done = func(err error) {
		if err != nil {
			c.reject(connID, errorEvent, "persist", persistenceFailure(err, "the result could not be saved"))
			return
		}
		if onSaved != nil {
			onSaved()
		}
	}
	if err := c.history.Enqueue(job); err != nil {
		c.reject(connID, errorEvent, "persist", persistenceFailure(err, "the result could not be saved"))
	}
}

func (c *Coordinator) reject(connID, errorEvent, action string, err error) {
	entry := c.log.WithError(err).WithFields(logrus.Fields{"connection_id": connID, "action": action})
	switch KindOf(err) {
	case KindValidation, KindNotFound:
		entry.Debug("action rejected")
	default:
		entry.Error("action failed")
	}
	c.hub.SendTo(connID, Event{Name: errorEvent, Data: ErrorPayload{Message: PublicMessage(err), Kind: KindOf(err)}})
}
