package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type memWriter struct {
	path        string
	data        []byte
	contentType string
}

func (w *memWriter) GetObject(context.Context, string) ([]byte, error) {
	return nil, domain.ErrNotFound
}

func (w *memWriter) PutObject(_ context.Context, path string, data []byte, contentType string) error {
	w.path, w.data, w.contentType = path, data, contentType
	return nil
}

type listStore []domain.Opportunity

func (s listStore) ListBefore(_ context.Context, before time.Time) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for _, o := range s {
		if o.DetectedAt.Before(before) {
			out = append(out, o)
		}
	}
	return out, nil
}

type memAudit struct{ events []string }

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveOpportunities(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store := listStore{
		{ID: "a", Cycle: domain.Cycle{"BTC/USDT", "ETH/BTC", "ETH/USDT"}, ProfitPct: 0.004, DetectedAt: cutoff.Add(-time.Hour)},
		{ID: "b", DetectedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "c", DetectedAt: cutoff.Add(time.Hour)},
	}
	w := &memWriter{}
	audit := &memAudit{}

	n, err := NewArchiver(w, store, audit).ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)

	assert.EqualValues(t, 2, n)
	assert.Equal(t, "archive/opportunities/2026-02.jsonl", w.path)
	assert.Equal(t, "application/x-ndjson", w.contentType)
	assert.Equal(t, []string{"archive.opportunities"}, audit.events)

	sc := bufio.NewScanner(bytes.NewReader(w.data))
	var ids []string
	for sc.Scan() {
		var rec archivedOpportunity
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestArchiveOpportunities_Nothing(t *testing.T) {
	w := &memWriter{}
	n, err := NewArchiver(w, listStore{}, nil).ArchiveOpportunities(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.path)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
	assert.Equal(t, "http://minio.local", normaliseEndpoint("minio.local", false))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
}

func TestUseMultipart(t *testing.T) {
	c := &Client{threshold: DefaultMultipartThreshold}
	assert.False(t, c.useMultipart(1024))
	assert.False(t, c.useMultipart(int(DefaultMultipartThreshold)))
	assert.True(t, c.useMultipart(int(DefaultMultipartThreshold)+1))
}
