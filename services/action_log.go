// services/action_log.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ActionRecord is one accepted action, published for out-of-process auditing.
type ActionRecord struct {
	Game      string         `json:"game"`
	Seq       int            `json:"seq"`
	ActorID   string         `json:"actorId,omitempty"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ActionRecorder receives accepted actions. Implementations must not block the caller.
type ActionRecorder interface {
	Record(rec ActionRecord)
}

// NoopActionLog drops every record.
type NoopActionLog struct{}

func (NoopActionLog) Record(ActionRecord) {}

const actionLogBuffer = 256

// listPusher is the slice of the redis client the action log needs.
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisActionLog appends records to a Redis list. A single writer goroutine
// drains the queue so the list keeps commit order.
type RedisActionLog struct {
	rdb     *redis.Client
	push    listPusher
	key     string
	timeout time.Duration
	log     *logrus.Entry

	mu     sync.RWMutex
	closed bool
	queue  chan ActionRecord
	done   chan struct{}
}

func NewRedisActionLog(redisURL, key string, logger *logrus.Logger) (*RedisActionLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	l := newActionLog(rdb, key, actionLogBuffer, logger)
	l.rdb = rdb
	return l, nil
}

func newActionLog(push listPusher, key string, buffer int, logger *logrus.Logger) *RedisActionLog {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &RedisActionLog{
		push:    push,
		key:     key,
		timeout: 2 * time.Second,
		log:     logger.WithField("component", "action_log"),
		queue:   make(chan ActionRecord, buffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Ping checks the connection once at startup.
func (l *RedisActionLog) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Record queues rec for publishing. A full queue drops the record.
func (l *RedisActionLog) Record(rec ActionRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- rec:
	default:
		l.log.WithFields(logrus.Fields{"game": rec.Game, "seq": rec.Seq}).Warn("action log queue full, record dropped")
	}
}

func (l *RedisActionLog) run() {
	defer close(l.done)
	for rec := range l.queue {
		l.publish(rec)
	}
}

func (l *RedisActionLog) publish(rec ActionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	body, err := json.Marshal(rec)
	if err != nil {
		l.log.WithError(err).WithField("action", rec.Action).Error("encode action record")
		return
	}
	if err := l.push.RPush(ctx, l.key, body).Err(); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"game":   rec.Game,
			"seq":    rec.Seq,
			"action": rec.Action,
		}).Error("failed publishing action")
	}
}

// Close publishes whatever is still queued and closes the client.
func (l *RedisActionLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
