package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeList struct {
	mu    sync.Mutex
	items map[string][][]byte
	fail  bool
	gate  chan struct{}
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.gate != nil {
		<-f.gate
	}
	// uneven latency so a concurrent writer would reorder pushes
	time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)

	cmd := redis.NewIntCmd(ctx, "rpush", key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	if f.items == nil {
		f.items = map[string][][]byte{}
	}
	for _, v := range values {
		f.items[key] = append(f.items[key], v.([]byte))
	}
	cmd.SetVal(int64(len(f.items[key])))
	return cmd
}

func TestActionLogKeepsCommitOrder(t *testing.T) {
	list := &fakeList{}
	l := newActionLog(list, "actions", 128, quietLogger())

	for seq := 1; seq <= 100; seq++ {
		l.Record(ActionRecord{Game: GameKniffel, Seq: seq, Action: ActionRoll})
	}
	require.NoError(t, l.Close())

	list.mu.Lock()
	defer list.mu.Unlock()
	require.Len(t, list.items["actions"], 100)
	for i, body := range list.items["actions"] {
		var rec ActionRecord
		require.NoError(t, json.Unmarshal(body, &rec))
		assert.Equal(t, i+1, rec.Seq)
	}
}

func TestActionLogDropsWhenFullAndAfterClose(t *testing.T) {
	list := &fakeList{gate: make(chan struct{})}
	l := newActionLog(list, "actions", 1, quietLogger())

	for seq := 1; seq <= 50; seq++ {
		l.Record(ActionRecord{Game: GameOlympiade, Seq: seq})
	}
	close(list.gate)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	l.Record(ActionRecord{Game: GameOlympiade, Seq: 99})

	list.mu.Lock()
	defer list.mu.Unlock()
	pushed := list.items["actions"]
	require.NotEmpty(t, pushed)
	assert.LessOrEqual(t, len(pushed), 2, "one in flight plus one buffered")

	prev := 0
	for _, body := range pushed {
		var rec ActionRecord
		require.NoError(t, json.Unmarshal(body, &rec))
		assert.Greater(t, rec.Seq, prev)
		assert.NotEqual(t, 99, rec.Seq)
		prev = rec.Seq
	}
}

func TestActionLogSurvivesPushErrors(t *testing.T) {
	list := &fakeList{fail: true}
	l := newActionLog(list, "actions", 8, quietLogger())
	l.Record(ActionRecord{Game: GameKniffel, Seq: 1})
	assert.NoError(t, l.Close())
	assert.Empty(t, list.items)
}
