package models

import (
	"fmt"
	"time"
)

// EventKind identifies a contract notification type emitted by the
// rumor-tracing ledger contract.
type EventKind string

const (
	EventRumorCreated     EventKind = "RumorCreated"
	EventRumorVerified    EventKind = "RumorVerified"
	EventContractUpgraded EventKind = "ContractUpgraded"
)

// AllEventKinds lists the kinds the indexer understands, in the order the
// dispatcher polls them. RumorCreated comes first so that a created rumor
// is always persisted before its verification within one cycle.
var AllEventKinds = []EventKind{
	EventRumorCreated,
	EventRumorVerified,
	EventContractUpgraded,
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventRumorCreated, EventRumorVerified, EventContractUpgraded:
		return true
	}
	return false
}

// RawEvent is the immutable record of one observed contract notification.
// Raw events are append-only audit data and are never deduplicated.
type RawEvent struct {
	ID          int64          `json:"id"`
	Kind        EventKind      `json:"event_kind"`
	Payload     map[string]any `json:"payload"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RumorCreatedPayload is the decoded field set of a RumorCreated event.
type RumorCreatedPayload struct {
	RumorID int64  `json:"rumor_id"`
	Creator string `json:"creator"`
	Content string `json:"content"`
}

// RumorVerifiedPayload is the decoded field set of a RumorVerified event.
type RumorVerifiedPayload struct {
	RumorID  int64  `json:"rumor_id"`
	Verifier string `json:"verifier"`
	Result   string `json:"result"`
}

// ContractUpgradedPayload is the decoded field set of a ContractUpgraded event.
type ContractUpgradedPayload struct {
	NewImplementation string `json:"new_implementation"`
}

// Rumor is the domain record reconciled from RumorCreated events and
// enriched by later verifications. ChainID is the contract-assigned
// identifier and the dedup key.
type Rumor struct {
	ID                 int64          `json:"id"`
	ChainID            int64          `json:"chain_id"`
	Content            string         `json:"content"`
	Source             string         `json:"source"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatorAddress     string         `json:"creator_address"`
	CreatedAt          time.Time      `json:"created_at"`
	IsVerified         bool           `json:"is_verified"`
	VerificationResult string         `json:"verification_result,omitempty"`
	VerifierAddress    string         `json:"verifier_address,omitempty"`
	VerifiedAt         *time.Time     `json:"verified_at,omitempty"`
	IngestedAt         time.Time      `json:"ingested_at"`
}

// Verification is the detail record behind a RumorVerified event. It can
// only exist once the referenced rumor row is persisted.
type Verification struct {
	ID              int64     `json:"id"`
	ChainID         int64     `json:"chain_id"`
	RumorID         int64     `json:"rumor_id"`
	Result          string    `json:"result"`
	Evidence        string    `json:"evidence,omitempty"`
	VerifierAddress string    `json:"verifier_address"`
	CreatedAt       time.Time `json:"created_at"`
	IngestedAt      time.Time `json:"ingested_at"`
}

// SourceType classifies where a rumor was first published.
type SourceType string

const (
	SourceSocialMedia SourceType = "social_media"
	SourceNewsWebsite SourceType = "news_website"
	SourceForum       SourceType = "forum"
	SourceOther       SourceType = "other"
)

// RumorAnalysis holds per-rumor derived features. It is computed once from
// the rumor content; only the verification latency is filled in later, on
// first verification.
type RumorAnalysis struct {
	ID                  int64      `json:"id"`
	RumorID             int64      `json:"rumor_id"`
	ContentLength       int        `json:"content_length"`
	WordCount           int        `json:"word_count"`
	SourceType          SourceType `json:"source_type"`
	VerificationLatency *int64     `json:"verification_latency_seconds,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// SourceTypeStats is one row of the by-source-type aggregate view.
type SourceTypeStats struct {
	SourceType SourceType `json:"source_type"`
	Count      int64      `json:"count"`
	AvgLength  float64    `json:"avg_length"`
	AvgWords   float64    `json:"avg_words"`
	AvgLatency float64    `json:"avg_verification_time"`
}

// TrendBucket is one row of the hourly event trend view.
type TrendBucket struct {
	Hour  time.Time `json:"hour"`
	Kind  EventKind `json:"event_kind"`
	Count int64     `json:"count"`
}

// KindCorrelation counts co-occurrences of an unordered pair of distinct
// event kinds within the same transaction. KindA sorts before KindB so
// each pair appears exactly once.
type KindCorrelation struct {
	KindA EventKind `json:"event_type1"`
	KindB EventKind `json:"event_type2"`
	Count int64     `json:"pair_count"`
}

// EventSummary aggregates the raw event table for the report header.
type EventSummary struct {
	TotalEvents   int64  `json:"total_events"`
	DistinctKinds int64  `json:"unique_event_types"`
	FirstBlock    uint64 `json:"first_block"`
	LastBlock     uint64 `json:"last_block"`
}

// decode helpers

func getString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("payload missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("payload field %q is %T, want string", key, v)
	}
	return s, nil
}

func getInt64(payload map[string]any, key string) (int64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("payload missing field %q", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("payload field %q is %T, want integer", key, v)
	}
}

// DecodeRumorCreated validates and decodes a RumorCreated payload.
func DecodeRumorCreated(payload map[string]any) (*RumorCreatedPayload, error) {
	id, err := getInt64(payload, "rumor_id")
	if err != nil {
		return nil, err
	}
	creator, err := getString(payload, "creator")
	if err != nil {
		return nil, err
	}
	content, err := getString(payload, "content")
	if err != nil {
		return nil, err
	}
	return &RumorCreatedPayload{RumorID: id, Creator: creator, Content: content}, nil
}

// DecodeRumorVerified validates and decodes a RumorVerified payload.
func DecodeRumorVerified(payload map[string]any) (*RumorVerifiedPayload, error) {
	id, err := getInt64(payload, "rumor_id")
	if err != nil {
		return nil, err
	}
	verifier, err := getString(payload, "verifier")
	if err != nil {
		return nil, err
	}
	result, err := getString(payload, "result")
	if err != nil {
		return nil, err
	}
	return &RumorVerifiedPayload{RumorID: id, Verifier: verifier, Result: result}, nil
}

// DecodeContractUpgraded validates and decodes a ContractUpgraded payload.
func DecodeContractUpgraded(payload map[string]any) (*ContractUpgradedPayload, error) {
	impl, err := getString(payload, "new_implementation")
	if err != nil {
		return nil, err
	}
	return &ContractUpgradedPayload{NewImplementation: impl}, nil
}
