package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	wbredis "github.com/marcelsud/webhook-sender/webhook/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	name      string
	length    int64
	pending   int64
	consumers []wbredis.ConsumerHeartbeat
	err       error
}

func (f *fakeStream) Stream() string { return f.name }

func (f *fakeStream) Len(ctx context.Context) (int64, error) { return f.length, f.err }

func (f *fakeStream) Pending(ctx context.Context) (int64, error) { return f.pending, f.err }

func (f *fakeStream) ActiveConsumers(ctx context.Context) ([]wbredis.ConsumerHeartbeat, error) {
	return f.consumers, f.err
}

func TestRedisCollector_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("success - per stream metrics", func(t *testing.T) {
		beat := time.Now()
		collector := NewRedisCollector(
			&fakeStream{name: "q1", length: 10, pending: 2, consumers: []wbredis.ConsumerHeartbeat{
				{Consumer: "c1", Stream: "q1", Status: "idle", LastHeartbeat: beat},
			}},
			&fakeStream{name: "q2", length: 0},
		)

		m, err := collector.Collect(ctx)
		require.NoError(t, err)

		assert.Equal(t, map[string]int64{"q1": 10, "q2": 0}, m.QueueLengths)
		assert.Equal(t, map[string]int64{"q1": 2, "q2": 0}, m.PendingCounts)
		require.Len(t, m.Consumers["q1"], 1)
		assert.Equal(t, ConsumerInfo{Consumer: "c1", Stream: "q1", Status: "idle", LastHeartbeat: beat}, m.Consumers["q1"][0])
		assert.Empty(t, m.Consumers["q2"])
		assert.False(t, m.Timestamp.IsZero())
	})

	t.Run("error - stream failure is wrapped", func(t *testing.T) {
		collector := NewRedisCollector(&fakeStream{name: "q1", err: errors.New("connection refused")})

		_, err := collector.Collect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting queue lengths")
		assert.Contains(t, err.Error(), "stream q1")
	})
}
