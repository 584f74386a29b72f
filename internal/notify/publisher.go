// Package notify publishes persisted records and reports to NATS for
// downstream consumers. Publishing is best effort: a failed publish is
// logged and never fails the ingestion path.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// Subjects for downstream consumers.
const (
	SubjectRumorPersisted        = "rumors.persisted"
	SubjectVerificationPersisted = "verifications.persisted"
	SubjectAnalyticsReport       = "analytics.report"
)

// Publisher is the notification boundary. The nil-safe NoopPublisher is
// used when NATS is disabled.
type Publisher interface {
	RumorPersisted(r *models.Rumor)
	VerificationPersisted(v *models.Verification)
	ReportGenerated(report *analytics.Report)
	Close()
}

// Config holds the NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPublisher publishes JSON payloads to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(cfg Config, log *slog.Logger) (*NATSPublisher, error) {
	if cfg.Name == "" {
		cfg.Name = "ledger-indexer"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, log: log}, nil
}

// RumorPersisted announces a rumor row write.
func (p *NATSPublisher) RumorPersisted(r *models.Rumor) {
	p.publish(SubjectRumorPersisted, r)
}

// VerificationPersisted announces a verification row write.
func (p *NATSPublisher) VerificationPersisted(v *models.Verification) {
	p.publish(SubjectVerificationPersisted, v)
}

// ReportGenerated announces a completed analytics recompute.
func (p *NATSPublisher) ReportGenerated(report *analytics.Report) {
	p.publish(SubjectAnalyticsReport, report)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("nats drain", "error", err)
	}
}

func (p *NATSPublisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("marshal notification", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("publish notification", "subject", subject, "error", err)
	}
}

// NoopPublisher drops all notifications.
type NoopPublisher struct{}

func (NoopPublisher) RumorPersisted(*models.Rumor)               {}
func (NoopPublisher) VerificationPersisted(*models.Verification) {}
func (NoopPublisher) ReportGenerated(*analytics.Report)          {}
func (NoopPublisher) Close()                                     {}
