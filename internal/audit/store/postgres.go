package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"actionplan/internal/audit/models"
	"actionplan/pkg/platform/sentinel"
	"actionplan/pkg/platform/tx"
	"actionplan/pkg/requestcontext"
)

// PostgresStore persists enterprises, findings and attachments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed gateway.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func (s *PostgresStore) conn(ctx context.Context) executor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// RunInTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM enterprises WHERE coid = $1)`, identifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enterprise %s: %w", identifier, err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertEnterprise(ctx context.Context, md models.AuditMetadata) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO enterprises (id, coid, company_name, reference_standard, audit_type, audit_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (coid) DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err := s.conn(ctx).QueryRowContext(ctx, query,
		id,
		md.ExternalIdentifier,
		md.CompanyName,
		md.ReferenceStandard,
		md.AuditType,
		md.AuditDate,
		requestcontext.Now(ctx).UTC(),
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("insert enterprise %s: %w", md.Identifier(), sentinel.ErrConflict)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert enterprise: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) InsertFindings(ctx context.Context, enterpriseID uuid.UUID, records []models.FindingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	stmt, err := s.conn(ctx).PrepareContext(ctx, `
		INSERT INTO nonconformities (
			id, enterprise_id, source_row,
			requirement_no, requirement_text, requirement_score, requirement_explanation,
			correction_description, correction_responsibility, correction_due_date,
			correction_status, correction_evidence,
			corrective_action_description, corrective_action_responsibility,
			corrective_action_due_date, corrective_action_status,
			release_responsibility, release_date, extra, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19::jsonb, $20, $20
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare findings insert: %w", err)
	}
	defer stmt.Close()

	now := requestcontext.Now(ctx).UTC()
	for _, r := range records {
		extra, err := encodeExtra(r.Extra)
		if err != nil {
			return 0, fmt.Errorf("insert finding row %d: %w", r.SourceRow, err)
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New(), enterpriseID, r.SourceRow,
			r.RequirementNo, r.RequirementText, r.RequirementScore, r.RequirementExplanation,
			r.CorrectionDescription, r.CorrectionResponsibility, r.CorrectionDueDate,
			string(r.CorrectionStatus), r.CorrectionEvidence,
			r.CorrectiveActionDescription, r.CorrectiveActionResponsibility,
			r.CorrectiveActionDueDate, string(r.CorrectiveActionStatus),
			r.ReleaseResponsibility, r.ReleaseDate, extra, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert finding row %d: %w", r.SourceRow, err)
		}
	}
	return len(records), nil
}

func (s *PostgresStore) UpdateFinding(ctx context.Context, id uuid.UUID, update models.FindingUpdate) (*models.Finding, error) {
	var out *models.Finding
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.findFinding(ctx, id, true)
		if err != nil {
			return err
		}
		f.Apply(update)
		f.UpdatedAt = requestcontext.Now(ctx).UTC()
		_, err = s.conn(ctx).ExecContext(ctx, `
			UPDATE nonconformities SET
				correction_description = $2,
				correction_responsibility = $3,
				correction_due_date = $4,
				correction_status = $5,
				correction_evidence = $6,
				corrective_action_description = $7,
				corrective_action_responsibility = $8,
				corrective_action_due_date = $9,
				corrective_action_status = $10,
				release_responsibility = $11,
				release_date = $12,
				updated_at = $13
			WHERE id = $1
		`,
			id,
			f.CorrectionDescription, f.CorrectionResponsibility, f.CorrectionDueDate,
			string(f.CorrectionStatus), f.CorrectionEvidence,
			f.CorrectiveActionDescription, f.CorrectiveActionResponsibility,
			f.CorrectiveActionDueDate, string(f.CorrectiveActionStatus),
			f.ReleaseResponsibility, f.ReleaseDate, f.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update finding %s: %w", id, err)
		}
		if err := s.loadAttachments(ctx, []*models.Finding{f}); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) FindFinding(ctx context.Context, id uuid.UUID) (*models.Finding, error) {
	f, err := s.findFinding(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, []*models.Finding{f}); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *PostgresStore) findFinding(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Finding, error) {
	query := selectFindings + ` WHERE f.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF f`
	}
	f, err := scanFinding(s.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find finding %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find finding %s: %w", id, err)
	}
	return f, nil
}

func (s *PostgresStore) ListFindings(ctx context.Context, filter models.FindingFilter) ([]*models.Finding, error) {
	query := selectFindings
	var args []any
	if len(filter.Identifiers) > 0 {
		query += ` WHERE e.coid = ANY($1::text[])`
		args = append(args, pq.Array(filter.Identifiers))
	}
	query += ` ORDER BY e.created_at, e.coid, f.source_row`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	findings := make([]*models.Finding, 0)
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	if err := s.loadAttachments(ctx, findings); err != nil {
		return nil, err
	}
	return findings, nil
}

func (s *PostgresStore) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT coid FROM enterprises ORDER BY coid`)
	if err != nil {
		return nil, fmt.Errorf("list identifiers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var coid string
		if err := rows.Scan(&coid); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		ids = append(ids, coid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identifiers: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) AddAttachment(ctx context.Context, att *models.Attachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO finding_attachments (id, finding_id, filename, url, created_at)
		SELECT $1::uuid, f.id, $3::text, $4::text, $5::timestamptz FROM nonconformities f WHERE f.id = $2
	`, att.ID, att.FindingID, att.Filename, att.URL, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("add attachment: finding %s: %w", att.FindingID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) loadAttachments(ctx context.Context, findings []*models.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Finding, len(findings))
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		f.Attachments = []models.Attachment{}
		byID[f.ID] = f
		ids = append(ids, f.ID.String())
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, finding_id, filename, url, created_at
		FROM finding_attachments
		WHERE finding_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.FindingID, &a.Filename, &a.URL, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if f, ok := byID[a.FindingID]; ok {
			f.Attachments = append(f.Attachments, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attachments: %w", err)
	}
	return nil
}

const selectFindings = `
	SELECT
		f.id, f.enterprise_id, e.coid, f.source_row,
		f.requirement_no, f.requirement_text, f.requirement_score, f.requirement_explanation,
		f.correction_description, f.correction_responsibility, f.correction_due_date,
		f.correction_status, f.correction_evidence,
		f.corrective_action_description, f.corrective_action_responsibility,
		f.corrective_action_due_date, f.corrective_action_status,
		f.release_responsibility, f.release_date, f.extra, f.created_at, f.updated_at
	FROM nonconformities f
	JOIN enterprises e ON e.id = f.enterprise_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFinding(row rowScanner) (*models.Finding, error) {
	var (
		f                models.Finding
		text             [13]sql.NullString
		correctionStatus string
		correctiveStatus string
		extra            []byte
	)
	err := row.Scan(
		&f.ID, &f.EnterpriseID, &f.ExternalIdentifier, &f.SourceRow,
		&text[0], &text[1], &text[2], &text[3],
		&text[4], &text[5], &text[6],
		&correctionStatus, &text[7],
		&text[8], &text[9],
		&text[10], &correctiveStatus,
		&text[11], &text[12], &extra, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	targets := []**string{
		&f.RequirementNo, &f.RequirementText, &f.RequirementScore, &f.RequirementExplanation,
		&f.CorrectionDescription, &f.CorrectionResponsibility, &f.CorrectionDueDate,
		&f.CorrectionEvidence,
		&f.CorrectiveActionDescription, &f.CorrectiveActionResponsibility,
		&f.CorrectiveActionDueDate,
		&f.ReleaseResponsibility, &f.ReleaseDate,
	}
	for i, t := range targets {
		if text[i].Valid {
			v := text[i].String
			*t = &v
		}
	}
	f.CorrectionStatus = models.Status(correctionStatus)
	f.CorrectiveActionStatus = models.Status(correctiveStatus)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &f.Extra); err != nil {
			return nil, fmt.Errorf("decode extra columns: %w", err)
		}
		if len(f.Extra) == 0 {
			f.Extra = nil
		}
	}
	return &f, nil
}

func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra columns: %w", err)
	}
	return string(b), nil
}
