package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	got  []Event
	fail bool
}

func (r *recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, evt)
	if r.fail {
		return errors.New("sink down")
	}
	return nil
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	broken := &recorder{fail: true}
	healthy := &recorder{}
	f := NewFanout(zap.NewNop()).Add("broken", broken).Add("healthy", healthy).Add("nil", nil)

	evt := New(RequestCreated, "req-1", map[string]interface{}{"quantity": 3})
	assert.NoError(t, f.Publish(context.Background(), evt))

	assert.Len(t, broken.got, 1)
	assert.Len(t, healthy.got, 1)
	assert.Equal(t, RequestCreated, healthy.got[0].Type)
	assert.Equal(t, "req-1", healthy.got[0].Key)
	assert.False(t, healthy.got[0].OccurredAt.IsZero())
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), New(StockReceived, "r", nil)))
}
