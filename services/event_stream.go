package services

import (
	"bufio"
	"encoding/json"
	"fmt"

	"game-night-server/middleware"

	"github.com/gofiber/fiber/v2"
)

// StreamEvents opens a connection and streams every event addressed to it.
// The stream ending, by client close or failed write, is the disconnect.
func (c *Coordinator) StreamEvents(fc *fiber.Ctx) error {
	fc.Set("Content-Type", "text/event-stream")
	fc.Set("Cache-Control", "no-cache")
	fc.Set("Connection", "keep-alive")
	fc.Set("X-Accel-Buffering", "no") // nginx

	sub := c.Connect()
	fc.Set(middleware.HeaderConnectionID, sub.ConnectionID)
	done := fc.Context().Done()
	log := c.log.WithField("connection_id", sub.ConnectionID)

	fc.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer c.Disconnect(sub.ConnectionID)

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					log.WithError(err).WithField("event", ev.Name).Error("encode event")
					continue
				}
				if err := w.Flush(); err != nil {
					log.WithError(err).Debug("stream closed by client")
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

// writeEvent frames ev as a Server-Sent Event.
func writeEvent(w *bufio.Writer, ev Event) error {
	if ev.IsKeepalive() {
		_, err := w.WriteString(":keepalive\n\n")
		return err
	}
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
	return err
}

// PostKniffelEvent applies the Kniffel action named in the path.
func (c *Coordinator) PostKniffelEvent(fc *fiber.Ctx) error {
	var act KniffelAction
	if err := parseAction(fc, &act); err != nil {
		c.log.WithError(err).WithField("path", fc.Path()).Debug("malformed action body")
		return fc.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	state, err := c.HandleKniffel(fc.UserContext(), middleware.ConnectionID(fc), fc.Params("event"), act)
	if err != nil {
		return actionError(fc, EventKniffelError, err)
	}
	return fc.JSON(state)
}

// PostOlympiadeEvent applies the Olympiade action named in the path.
func (c *Coordinator) PostOlympiadeEvent(fc *fiber.Ctx) error {
	var act OlympiadeAction
	if err := parseAction(fc, &act); err != nil {
		c.log.WithError(err).WithField("path", fc.Path()).Debug("malformed action body")
		return fc.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	state, err := c.HandleOlympiade(fc.UserContext(), middleware.ConnectionID(fc), fc.Params("event"), act)
	if err != nil {
		return actionError(fc, EventOlympiadeError, err)
	}
	return fc.JSON(state)
}

// GetKniffelStatus returns the current dice table.
func (c *Coordinator) GetKniffelStatus(fc *fiber.Ctx) error {
	return fc.JSON(c.Kniffel.Snapshot())
}

// GetOlympiadeStatus returns the current tournament.
func (c *Coordinator) GetOlympiadeStatus(fc *fiber.Ctx) error {
	return fc.JSON(c.Olympiade.Snapshot())
}

// GetStandings returns the tournament ranking so far.
func (c *Coordinator) GetStandings(fc *fiber.Ctx) error {
	return fc.JSON(c.Olympiade.Standings())
}

// parseAction decodes an optional JSON body. Actions without a payload may
// send none.
func parseAction(fc *fiber.Ctx, v any) error {
	if len(fc.Body()) == 0 {
		return nil
	}
	return json.Unmarshal(fc.Body(), v)
}

func actionError(fc *fiber.Ctx, event string, err error) error {
	status := fiber.StatusInternalServerError
	switch KindOf(err) {
	case KindValidation:
		status = fiber.StatusUnprocessableEntity
	case KindNotFound:
		status = fiber.StatusNotFound
	}
	return fc.Status(status).JSON(fiber.Map{
		"event":   event,
		"message": PublicMessage(err),
		"kind":    KindOf(err),
	})
}
