package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// OpportunityArchiveStore provides read access to opportunities for
// archival purposes.
type OpportunityArchiveStore interface {
	// ListBefore returns all opportunities detected strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// Archiver copies old opportunity rows to object storage as JSONL.
//
// Deletion of the archived rows from the primary store is intentionally
// NOT performed here; that is a separate step once the archive is verified.
type Archiver struct {
	objects domain.ObjectStore
	opps   OpportunityArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(objects domain.ObjectStore, opps OpportunityArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{objects: objects, opps: opps, audit: audit}
}

// archivedOpportunity is the JSONL line format.
type archivedOpportunity struct {
	ID          string     `json:"id"`
	Cycle       [3]string  `json:"cycle"`
	TradeAmount float64    `json:"trade_amount"`
	Amounts     [3]float64 `json:"amounts"`
	Ask1        float64    `json:"ask1"`
	Bid2        float64    `json:"bid2"`
	Bid3        float64    `json:"bid3"`
	Profit      float64    `json:"profit"`
	ProfitPct   float64    `json:"profit_pct"`
	Simulated   bool       `json:"simulated"`
	Executed    bool       `json:"executed"`
	ExecError   string     `json:"exec_error,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}

// ArchiveOpportunities queries all opportunities before the cutoff,
// serializes them to JSONL, and uploads the file at
// archive/opportunities/YYYY-MM.jsonl. It returns the number of archived
// records.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	records := make([]archivedOpportunity, len(opps))
	for i, o := range opps {
		records[i] = archivedOpportunity{
			ID:          o.ID,
			Cycle:       o.Cycle,
			TradeAmount: o.TradeAmount,
			Amounts:     o.Amounts,
			Ask1:        o.Ask1,
			Bid2:        o.Bid2,
			Bid3:        o.Bid3,
			Profit:      o.Profit,
			ProfitPct:   o.ProfitPct,
			Simulated:   o.Simulated,
			Executed:    o.Executed,
			ExecError:   o.ExecError,
			DetectedAt:  o.DetectedAt,
		}
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.objects.PutObject(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(opps))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.opportunities", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive opportunities audit log: %w", err)
		}
	}
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/opportunities/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
