// Package store implements the persistence gateway for enterprises, findings
// and attachments: an in-memory version for local runs and tests, and a
// PostgreSQL version.
package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"actionplan/internal/audit/models"
	"actionplan/pkg/platform/sentinel"
	"actionplan/pkg/requestcontext"
)

type memoryState struct {
	enterprises map[uuid.UUID]models.Enterprise
	byCOID      map[string]uuid.UUID
	seq         map[uuid.UUID]int
	findings    map[uuid.UUID]models.Finding
	attachments map[uuid.UUID][]models.Attachment
	nextSeq     int
}

func (st *memoryState) clone() memoryState {
	c := memoryState{
		enterprises: maps.Clone(st.enterprises),
		byCOID:      maps.Clone(st.byCOID),
		seq:         maps.Clone(st.seq),
		findings:    maps.Clone(st.findings),
		attachments: make(map[uuid.UUID][]models.Attachment, len(st.attachments)),
		nextSeq:     st.nextSeq,
	}
	for k, v := range st.attachments {
		c.attachments[k] = append([]models.Attachment(nil), v...)
	}
	return c
}

// Memory is an in-process gateway. Transactions are serialized and roll back
// by restoring a snapshot taken when they start. Writes made outside a
// transaction wait for the running one to finish so a rollback cannot drop
// them.
type Memory struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state memoryState
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		enterprises: make(map[uuid.UUID]models.Enterprise),
		byCOID:      make(map[string]uuid.UUID),
		seq:         make(map[uuid.UUID]int),
		findings:    make(map[uuid.UUID]models.Finding),
		attachments: make(map[uuid.UUID][]models.Attachment),
	}}
}

type memoryTxKey struct{}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// serialize holds txMu for a write issued outside RunInTx.
func (m *Memory) serialize(ctx context.Context) func() {
	if ctx.Value(memoryTxKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.state.byCOID[identifier]
	return ok, nil
}

func (m *Memory) InsertEnterprise(ctx context.Context, md models.AuditMetadata) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	coid := md.Identifier()
	if coid == "" {
		return uuid.Nil, fmt.Errorf("insert enterprise: external identifier is required")
	}
	defer m.serialize(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.byCOID[coid]; ok {
		return uuid.Nil, fmt.Errorf("insert enterprise %s: %w", coid, sentinel.ErrConflict)
	}
	e := models.Enterprise{ID: uuid.New(), AuditMetadata: md, CreatedAt: requestcontext.Now(ctx).UTC()}
	m.state.enterprises[e.ID] = e
	m.state.byCOID[coid] = e.ID
	m.state.nextSeq++
	m.state.seq[e.ID] = m.state.nextSeq
	return e.ID, nil
}

func (m *Memory) InsertFindings(ctx context.Context, enterpriseID uuid.UUID, records []models.FindingRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer m.serialize(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.enterprises[enterpriseID]
	if !ok {
		return 0, fmt.Errorf("insert findings: enterprise %s: %w", enterpriseID, sentinel.ErrNotFound)
	}
	now := requestcontext.Now(ctx).UTC()
	for _, r := range records {
		f := models.Finding{
			ID:                 uuid.New(),
			EnterpriseID:       enterpriseID,
			ExternalIdentifier: e.Identifier(),
			FindingRecord:      r,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		f.Extra = maps.Clone(r.Extra)
		m.state.findings[f.ID] = f
	}
	return len(records), nil
}

func (m *Memory) UpdateFinding(ctx context.Context, id uuid.UUID, update models.FindingUpdate) (*models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer m.serialize(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.state.findings[id]
	if !ok {
		return nil, fmt.Errorf("update finding %s: %w", id, sentinel.ErrNotFound)
	}
	f.Apply(update)
	f.UpdatedAt = requestcontext.Now(ctx).UTC()
	m.state.findings[id] = f
	return m.withAttachments(f), nil
}

func (m *Memory) FindFinding(ctx context.Context, id uuid.UUID) (*models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.state.findings[id]
	if !ok {
		return nil, fmt.Errorf("find finding %s: %w", id, sentinel.ErrNotFound)
	}
	return m.withAttachments(f), nil
}

func (m *Memory) ListFindings(ctx context.Context, filter models.FindingFilter) ([]*models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(filter.Identifiers))
	for _, id := range filter.Identifiers {
		want[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Finding, 0)
	for _, f := range m.state.findings {
		if len(want) > 0 && !want[f.ExternalIdentifier] {
			continue
		}
		out = append(out, m.withAttachments(f))
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := m.state.seq[out[i].EnterpriseID], m.state.seq[out[j].EnterpriseID]
		if si != sj {
			return si < sj
		}
		return out[i].SourceRow < out[j].SourceRow
	})
	return out, nil
}

func (m *Memory) ListIdentifiers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.state.byCOID))
	for coid := range m.state.byCOID {
		ids = append(ids, coid)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) AddAttachment(ctx context.Context, att *models.Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.serialize(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.findings[att.FindingID]; !ok {
		return fmt.Errorf("add attachment: finding %s: %w", att.FindingID, sentinel.ErrNotFound)
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	m.state.attachments[att.FindingID] = append(m.state.attachments[att.FindingID], *att)
	return nil
}

// withAttachments returns a copy of f carrying its attachments. Callers hold mu.
func (m *Memory) withAttachments(f models.Finding) *models.Finding {
	f.Attachments = append([]models.Attachment{}, m.state.attachments[f.ID]...)
	f.Extra = maps.Clone(f.Extra)
	return &f
}
