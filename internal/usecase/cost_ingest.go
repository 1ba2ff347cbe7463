package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CloudCostIQ/internal/domain/models"
	domrepo "CloudCostIQ/internal/domain/repository"
	pkgkafka "CloudCostIQ/pkg/kafka"
)

// KafkaCostEntriesHandler consumes billing records from Kafka and writes them
// to storage.
type KafkaCostEntriesHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaCostEntriesHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaCostEntriesHandler {
	return &KafkaCostEntriesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaCostEntriesHandler) Topic() string { return h.topic }

func (h *KafkaCostEntriesHandler) Handle(ctx context.Context, b []byte) error {
	var e models.CostEntry
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	// E2E latency from billing record time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(e.Date).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &e)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordEntryStored(e.Provider)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCostEntriesHandler)(nil)
