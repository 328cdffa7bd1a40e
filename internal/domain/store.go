package domain

import (
	"context"
	"time"
)

// ListOpts filters and pages list queries. Zero fields do not filter.
type ListOpts struct {
	Event  string
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CatalogueStore persists the cycle catalogue as a single blob.
// Load returns ErrNotFound when nothing has been saved yet.
type CatalogueStore interface {
	Load(ctx context.Context) (*Catalogue, error)
	Save(ctx context.Context, cat *Catalogue) error
	Name() string
}

// OpportunityStore persists detected opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
