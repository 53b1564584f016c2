package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type ClassifyRequest struct {
	Query     string `json:"query"`
	Region    string `json:"region,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ClassifyResponse struct {
	Intent   Intent           `json:"intent"`
	Layout   []ModuleLayout   `json:"layout"`
	Render   []ModuleLayout   `json:"render_order"`
	Metadata ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	RequestID      string `json:"request_id"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
	Fallback       bool   `json:"fallback"`
	TookUs         int64  `json:"took_us"`
}

// ParsedQuery carries the forms of a raw query used downstream. Lowered is
// what the classifier matches against; Normalized is the analytics key.
type ParsedQuery struct {
	Original   string
	Lowered    string
	Normalized string
	Tokens     []string
}

// ClassificationEvent is published once per classified query and feeds the
// analytics pipeline.
type ClassificationEvent struct {
	EventID        string    `json:"event_id"`
	Query          string    `json:"query"`
	QueryHash      string    `json:"query_hash"`
	Tokens         []string  `json:"tokens,omitempty"`
	Intent         Intent    `json:"intent"`
	MatchedKeyword string    `json:"matched_keyword,omitempty"`
	Fallback       bool      `json:"fallback"`
	Region         string    `json:"region,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Routing   string         `json:"routing,omitempty"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	QueryType  string    `json:"query_type"`
	DurationMs float64   `json:"duration_ms"`
	Rows       int64     `json:"rows"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

type IntentCount struct {
	Intent Intent `json:"intent"`
	Count  int64  `json:"count"`
}

type IntentBreakdown struct {
	Window   string        `json:"window"`
	Total    int64         `json:"total"`
	Intents  []IntentCount `json:"intents"`
	CacheHit bool          `json:"cache_hit"`
}

// UnmatchedQuery is a query that fell through to the general intent, kept
// for keyword table curation.
type UnmatchedQuery struct {
	ID       string    `json:"id"`
	Query    string    `json:"query"`
	Tokens   []string  `json:"tokens,omitempty"`
	Region   string    `json:"region,omitempty"`
	Score    float64   `json:"score"`
	LastSeen time.Time `json:"last_seen"`
}

type CurationRequest struct {
	Query  string `json:"query"`
	Region string `json:"region,omitempty"`
	Size   int    `json:"size"`
}

type CurationResponse struct {
	Results []UnmatchedQuery `json:"results"`
	Total   int64            `json:"total"`
	TookMs  int64            `json:"took_ms"`
}

// QueryHash is the stable key for a normalized query across logs, events and
// stores: the first 8 bytes of its SHA-256, hex encoded.
func QueryHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}
