package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"CloudCostIQ/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []*models.CostEntry
	failNext  bool
	closed    bool
}

func (f *fakePublisher) Publish(_ context.Context, e *models.CostEntry) error {
	if f.failNext {
		return fmt.Errorf("broker down")
	}
	f.published = append(f.published, e)
	return nil
}

func (f *fakePublisher) PublishBatch(_ context.Context, entries []*models.CostEntry) error {
	if f.failNext {
		return fmt.Errorf("broker down")
	}
	f.published = append(f.published, entries...)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type fakeMetrics struct {
	errors map[string]int
}

func (m *fakeMetrics) RecordEntryStored(string)          {}
func (m *fakeMetrics) RecordLastDailyCost(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)     {}
func (m *fakeMetrics) RecordError(kind string) {
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func entry(org string) *models.CostEntry {
	return &models.CostEntry{
		OrgID:    org,
		Provider: "aws",
		Service:  "ec2",
		Date:     time.Now().UTC(),
		Amount:   10,
		Currency: "USD",
	}
}

func TestPublishForwardsValidEntry(t *testing.T) {
	next := &fakePublisher{}
	p := NewIngestPipeline(next, &fakeMetrics{})

	require.NoError(t, p.Publish(context.Background(), entry("acme")))
	require.Len(t, next.published, 1)
	assert.Equal(t, "acme", next.published[0].OrgID)
}

func TestPublishRejectsInvalidEntry(t *testing.T) {
	next := &fakePublisher{}
	m := &fakeMetrics{}
	p := NewIngestPipeline(next, m)

	cases := []*models.CostEntry{
		nil,
		{Provider: "aws", Date: time.Now(), Amount: 1},  // missing org
		{OrgID: "acme", Provider: "aws", Amount: 1},     // zero date
		{OrgID: "acme", Date: time.Now(), Amount: -0.5}, // negative amount
	}
	for _, e := range cases {
		assert.Error(t, p.Publish(context.Background(), e))
	}
	assert.Empty(t, next.published)
	assert.Equal(t, len(cases), m.errors["ingest_validate"])
}

func TestPublishThrottlesPerOrg(t *testing.T) {
	next := &fakePublisher{}
	p := NewIngestPipeline(next, &fakeMetrics{}, WithMaxRPS(1))

	require.NoError(t, p.Publish(context.Background(), entry("acme")))
	err := p.Publish(context.Background(), entry("acme"))
	assert.ErrorIs(t, err, ErrThrottled)

	// a different org is not affected
	assert.NoError(t, p.Publish(context.Background(), entry("globex")))
}

func TestPublishBuffersOnBrokerFailure(t *testing.T) {
	next := &fakePublisher{failNext: true}
	m := &fakeMetrics{}
	p := NewIngestPipeline(next, m, WithBufferSize(4))

	// buffered entries count as accepted
	require.NoError(t, p.Publish(context.Background(), entry("acme")))
	assert.Equal(t, 1, m.errors["ingest_publish"])
	assert.Empty(t, next.published)

	// broker recovers; the flusher drains the buffer
	next.failNext = false
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(next.published) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, next.published, 1)
}

func TestPublishErrorsWhenBufferFull(t *testing.T) {
	next := &fakePublisher{failNext: true}
	m := &fakeMetrics{}
	p := NewIngestPipeline(next, m, WithBufferSize(1))
	p.maxRPS = 0 // disable throttling for this test

	require.NoError(t, p.Publish(context.Background(), entry("acme")))
	err := p.Publish(context.Background(), entry("acme"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 1, m.errors["ingest_buffer_full"])
}

func TestPublishBatch(t *testing.T) {
	next := &fakePublisher{}
	p := NewIngestPipeline(next, &fakeMetrics{})

	batch := []*models.CostEntry{entry("acme"), entry("acme"), entry("acme")}
	require.NoError(t, p.PublishBatch(context.Background(), batch))
	assert.Len(t, next.published, 3)
}

func TestCloseStopsAndClosesDownstream(t *testing.T) {
	next := &fakePublisher{}
	p := NewIngestPipeline(next, &fakeMetrics{})
	p.Start(context.Background())

	require.NoError(t, p.Close())
	assert.True(t, next.closed)
}
