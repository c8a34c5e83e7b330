package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (*index.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := corpus.New([]corpus.Source{{Name: "a.txt", Text: "refreshed document"}}, 0)
	return index.Build(c, uint64(f.calls)), nil
}

func encode(t *testing.T, e ingestion.RefreshEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestHandleRefreshRebuilds(t *testing.T) {
	r := &fakeRefresher{}
	handle := HandleRefresh(r)
	err := handle(context.Background(), []byte("docs"), encode(t, ingestion.RefreshEvent{
		Reason:      "watch",
		Dir:         "docs",
		RequestedAt: time.Now().UTC(),
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestHandleRefreshSkipsCoveredEvents(t *testing.T) {
	r := &fakeRefresher{}
	handle := HandleRefresh(r)
	ctx := context.Background()

	stale := time.Now().Add(-time.Minute).UTC()
	require.NoError(t, handle(ctx, nil, encode(t, ingestion.RefreshEvent{Reason: "watch", RequestedAt: time.Now().UTC()})))
	require.NoError(t, handle(ctx, nil, encode(t, ingestion.RefreshEvent{Reason: "watch", RequestedAt: stale})))
	assert.Equal(t, 1, r.calls)

	later := time.Now().Add(time.Minute).UTC()
	require.NoError(t, handle(ctx, nil, encode(t, ingestion.RefreshEvent{Reason: "api", RequestedAt: later})))
	assert.Equal(t, 2, r.calls)
}

func TestHandleRefreshBadPayloadIsSkipped(t *testing.T) {
	r := &fakeRefresher{}
	err := HandleRefresh(r)(context.Background(), []byte("k"), []byte("{not json"))
	assert.NoError(t, err)
	assert.Zero(t, r.calls)
}

func TestHandleRefreshFailureIsReturned(t *testing.T) {
	boom := errors.New("disk gone")
	r := &fakeRefresher{err: boom}
	handle := HandleRefresh(r)
	ev := encode(t, ingestion.RefreshEvent{Reason: "watch", Dir: "docs", RequestedAt: time.Now().UTC()})

	err := handle(context.Background(), nil, ev)
	assert.ErrorIs(t, err, boom)

	// a failed rebuild does not mark later events as covered
	r.err = nil
	require.NoError(t, handle(context.Background(), nil, ev))
	assert.Equal(t, 2, r.calls)
}
