package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CloudCostIQ/internal/domain/models"
	domrepo "CloudCostIQ/internal/domain/repository"
)

// ErrThrottled is returned when an org exceeds the ingest rate.
var ErrThrottled = fmt.Errorf("ingest rate exceeded")

// IngestPipeline is a middleware between the HTTP ingest endpoint and Kafka.
// It validates entries, throttles per org, and buffers when the broker is
// unavailable so accepted entries are retried in the background.
type IngestPipeline struct {
	next     domrepo.Publisher
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.CostEntry
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-org last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max publishes per second per org.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used when the broker is down.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline in front of the given publisher.
func NewIngestPipeline(next domrepo.Publisher, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		next:     next,
		metrics:  metrics,
		maxRPS:   100,  // default throttle per org
		bufSize:  2000, // default retry buffer
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.CostEntry, p.bufSize)
	return p
}

// Start launches background flushing of buffered entries.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case e := <-p.bufCh:
				if e == nil {
					continue
				}
				if err := p.next.Publish(ctx, e); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("ingest_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- e:
					default:
						p.metrics.RecordError("ingest_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Publish validates, throttles, and forwards the entry downstream, buffering
// it for retry when the broker rejects the write.
func (p *IngestPipeline) Publish(ctx context.Context, e *models.CostEntry) error {
	start := time.Now()
	if err := validateEntry(e); err != nil {
		p.metrics.RecordError("ingest_validate")
		return err
	}
	if !p.allow(e.OrgID, start) {
		p.metrics.RecordError("ingest_throttle")
		return ErrThrottled
	}

	if err := p.next.Publish(ctx, e); err != nil {
		p.metrics.RecordError("ingest_publish")
		// buffer non-blocking; buffered entries count as accepted
		select {
		case p.bufCh <- e:
			p.metrics.RecordLatency("ingest_buffer_depth", float64(len(p.bufCh)))
			return nil
		default:
			p.metrics.RecordError("ingest_buffer_full")
			return fmt.Errorf("ingest downstream: %w", err)
		}
	}
	p.metrics.RecordLatency("ingest_publish_seconds", time.Since(start).Seconds())
	return nil
}

// PublishBatch forwards a validated batch, falling back to per-entry
// buffering when the bulk write fails.
func (p *IngestPipeline) PublishBatch(ctx context.Context, entries []*models.CostEntry) error {
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			p.metrics.RecordError("ingest_validate")
			return err
		}
	}
	if len(entries) > 0 && !p.allow(entries[0].OrgID, time.Now()) {
		p.metrics.RecordError("ingest_throttle")
		return ErrThrottled
	}

	if err := p.next.PublishBatch(ctx, entries); err != nil {
		p.metrics.RecordError("ingest_publish")
		for _, e := range entries {
			select {
			case p.bufCh <- e:
			default:
				p.metrics.RecordError("ingest_buffer_full")
				return fmt.Errorf("ingest downstream: %w", err)
			}
		}
	}
	return nil
}

// Close stops the flusher and closes the downstream publisher.
func (p *IngestPipeline) Close() error {
	p.Stop()
	return p.next.Close()
}

func validateEntry(e *models.CostEntry) error {
	if e == nil {
		return fmt.Errorf("entry nil")
	}
	if e.OrgID == "" {
		return fmt.Errorf("org_id empty")
	}
	if e.Date.IsZero() {
		return fmt.Errorf("date invalid")
	}
	if e.Amount < 0 {
		return fmt.Errorf("negative amount")
	}
	return nil
}

func (p *IngestPipeline) allow(orgID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// simple throttle: ensure at most maxRPS per second
	last := p.lastSeen[orgID]
	if last.IsZero() {
		p.lastSeen[orgID] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[orgID] = now
	return true
}

var _ domrepo.Publisher = (*IngestPipeline)(nil)
