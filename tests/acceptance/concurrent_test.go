//go:build acceptance

package acceptance

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/sdk"
)

func TestConcurrentCallersKeepPerStreamOrder(t *testing.T) {
	const (
		callers   = 8
		perCaller = 50
	)
	eng := startEngine(t)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			client, err := sdk.Dial(context.Background(), "unix", eng.socket, "")
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()

			streamID := int64(idx + 1)
			for n := range perCaller {
				err := client.Log(context.Background(), api.LogEvent{
					Severity: api.SeverityInfo,
					Message:  fmt.Sprintf("%d", n),
					StreamID: streamID,
				})
				if err != nil {
					errs <- fmt.Errorf("caller %d: %w", idx, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	eng.stop(t)

	records := readJSONL(t, eng.jsonl)
	require.Len(t, records, callers*perCaller)

	next := map[int64]int{}
	for _, rec := range records {
		stream := int64(rec["stream_id"].(float64))
		assert.Equal(t, fmt.Sprintf("%d", next[stream]), rec["message"], "stream %d", stream)
		next[stream]++
	}
	assert.Len(t, next, callers)
}
