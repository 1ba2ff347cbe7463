package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/internal/domain/repository"
	pkgkafka "CloudCostIQ/pkg/kafka"
	applogger "CloudCostIQ/pkg/logger"
	xutil "CloudCostIQ/pkg/util"
)

const (
	entriesTable   = "cloudcostiq.cost_entries"
	providersTable = "cloudcostiq.cloud_providers"
)

// CHCostStore implements Storage backed by ClickHouse.
type CHCostStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCostStore(db *sql.DB) *CHCostStore {
	return &CHCostStore{db: db}
}

// SetLogger injects a structured logger.
func (s *CHCostStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCostStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *CHCostStore) Store(ctx context.Context, e *models.CostEntry) error {
	q := fmt.Sprintf("INSERT INTO %s (org_id, provider, service, region, date, amount, currency) VALUES (?, ?, ?, ?, ?, ?, ?)", entriesTable)
	_, err := s.db.ExecContext(ctx, q,
		e.OrgID, e.Provider, e.Service, e.Region, e.Date, e.Amount, e.Currency)
	return err
}

func (s *CHCostStore) StoreBatch(ctx context.Context, entries []*models.CostEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to keep statements bounded.
	const chunkSize = 2000
	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, e := range entries[start:end] {
			if e == nil || e.OrgID == "" || e.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, e.OrgID, e.Provider, e.Service, e.Region, e.Date, e.Amount, e.Currency)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (org_id, provider, service, region, date, amount, currency) VALUES %s",
			entriesTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// DailyCosts aggregates entries into one observation per day, ascending.
func (s *CHCostStore) DailyCosts(ctx context.Context, orgID string, from, to time.Time) ([]models.CostObservation, error) {
	start := time.Now()
	from, to = xutil.AlignDayRange(from, to)
	q := fmt.Sprintf(`
        SELECT toDate(date) AS day, sum(amount) AS daily_cost, any(service) AS service, any(provider) AS provider
        FROM %s
        WHERE org_id = ? AND date >= ? AND date < ?
        GROUP BY day
        ORDER BY day ASC
    `, entriesTable)
	// end-exclusive so intraday timestamps on the last day are included
	rows, err := s.db.QueryContext(ctx, q, orgID, from, to.AddDate(0, 0, 1))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse daily_costs query error",
				applogger.String("org_id", orgID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("daily costs: %w", err)
	}
	defer rows.Close()

	out := make([]models.CostObservation, 0, 1024)
	for rows.Next() {
		var o models.CostObservation
		if err := rows.Scan(&o.Date, &o.DailyCost, &o.Service, &o.CloudProvider); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse daily_costs scan error",
					applogger.String("org_id", orgID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan daily cost: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse daily_costs rows error",
				applogger.String("org_id", orgID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse daily_costs ok",
			applogger.String("org_id", orgID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// LatestDailyCosts returns the trailing N days of aggregated spend, ascending.
func (s *CHCostStore) LatestDailyCosts(ctx context.Context, orgID string, days int) ([]models.CostObservation, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT toDate(date) AS day, sum(amount) AS daily_cost, any(service) AS service, any(provider) AS provider
        FROM %s
        WHERE org_id = ?
        GROUP BY day
        ORDER BY day DESC
        LIMIT ?
    `, entriesTable)
	rows, err := s.db.QueryContext(ctx, q, orgID, days)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_daily_costs query error",
				applogger.String("org_id", orgID),
				applogger.Int("limit", days),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest daily costs: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.CostObservation, 0, days)
	for rows.Next() {
		var o models.CostObservation
		if err := rows.Scan(&o.Date, &o.DailyCost, &o.Service, &o.CloudProvider); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse latest_daily_costs scan error",
					applogger.String("org_id", orgID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan daily cost: %w", err)
		}
		tmp = append(tmp, o)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_daily_costs rows error",
				applogger.String("org_id", orgID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_daily_costs ok",
			applogger.String("org_id", orgID),
			applogger.Int("limit", days),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHCostStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCostStore) Close() error {
	return nil // Managed by pkg
}

// CHProviderStore persists encrypted provider credentials in ClickHouse.
type CHProviderStore struct {
	db *sql.DB
}

func NewCHProviderStore(db *sql.DB) *CHProviderStore {
	return &CHProviderStore{db: db}
}

func (s *CHProviderStore) SaveCredentials(ctx context.Context, orgID, provider, encrypted string) error {
	q := fmt.Sprintf("INSERT INTO %s (org_id, provider, credentials, updated_at) VALUES (?, ?, ?, ?)", providersTable)
	_, err := s.db.ExecContext(ctx, q, orgID, provider, encrypted, time.Now().UTC())
	return err
}

// Credentials returns the newest credential blob for (org, provider).
func (s *CHProviderStore) Credentials(ctx context.Context, orgID, provider string) (string, error) {
	q := fmt.Sprintf(`
        SELECT credentials FROM %s
        WHERE org_id = ? AND provider = ?
        ORDER BY updated_at DESC
        LIMIT 1
    `, providersTable)
	var out string
	if err := s.db.QueryRowContext(ctx, q, orgID, provider).Scan(&out); err != nil {
		return "", fmt.Errorf("provider credentials: %w", err)
	}
	return out, nil
}

// KafkaEntryPublisher implements Publisher for the ingestion topic.
type KafkaEntryPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEntryPublisher creates the Kafka publisher.
func NewKafkaEntryPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaEntryPublisher{producer: producer, topic: topic}
}

func (p *KafkaEntryPublisher) Publish(ctx context.Context, e *models.CostEntry) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.OrgID), e)
}

func (p *KafkaEntryPublisher) PublishBatch(ctx context.Context, entries []*models.CostEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(entries))
	for i, e := range entries {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(e.OrgID),
			Value: e,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaEntryPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
