package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"actionplan/internal/audit/extract"
	"actionplan/internal/audit/metrics"
	"actionplan/internal/audit/models"
	"actionplan/internal/events"
	"actionplan/internal/workbook"
	"actionplan/pkg/platform/sentinel"
	"actionplan/pkg/requestcontext"
)

// Preview extracts metadata and findings from doc without storing anything.
func (s *Service) Preview(ctx context.Context, doc []byte) (*models.Extraction, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Preview")
	defer span.End()

	ext, err := s.extract(doc)
	if err != nil {
		s.rejectUpload(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, translateExtraction(err)
	}
	span.SetAttributes(
		attribute.String("audit.coid", ext.Metadata.Identifier()),
		attribute.Int("audit.findings", len(ext.Findings)),
	)
	s.metrics.IncrementUpload("previewed", metrics.StageNone)
	return ext, nil
}

// Import extracts doc and stores the enterprise and its findings in one
// transaction. A COID that is already stored is rejected as a duplicate and
// nothing is written.
func (s *Service) Import(ctx context.Context, doc []byte) (*models.ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Import")
	defer span.End()

	ext, err := s.extract(doc)
	if err != nil {
		s.rejectUpload(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, translateExtraction(err)
	}
	if err := ext.Metadata.ValidateForPersistence(s.partialMetadata); err != nil {
		s.metrics.IncrementUpload("rejected", string(extract.StageMetadata))
		s.logger.InfoContext(ctx, "upload rejected",
			"stage", extract.StageMetadata,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, translateMissing(err)
	}

	coid := ext.Metadata.Identifier()
	span.SetAttributes(attribute.String("audit.coid", coid))

	result, err := s.store(ctx, ext)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrDuplicateEnterprise) || errors.Is(err, sentinel.ErrLocked) {
			outcome = "rejected"
		}
		s.metrics.IncrementUpload(outcome, string(extract.StageInsert))
		s.logger.WarnContext(ctx, "import failed",
			"coid", coid,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, translateInsert(err, coid)
	}

	s.metrics.IncrementUpload("imported", metrics.StageNone)
	s.metrics.AddFindingsImported(result.FindingsInserted)
	s.logger.InfoContext(ctx, "action plan imported",
		"coid", coid,
		"enterprise_id", result.EnterpriseID,
		"findings", result.FindingsInserted,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.New(ctx, events.EnterpriseImported, coid, map[string]string{
		"enterprise_id": result.EnterpriseID.String(),
		"findings":      strconv.Itoa(result.FindingsInserted),
	}))
	return result, nil
}

// extract opens doc and runs both extractors against the configured layout.
func (s *Service) extract(doc []byte) (*models.Extraction, error) {
	defer s.metrics.ObserveExtract(time.Now())

	wb, err := workbook.Open(doc)
	if err != nil {
		return nil, &extract.StageError{Stage: extract.StageDocument, Err: err}
	}
	defer func() { _ = wb.Close() }()

	if s.strictLayout {
		if err := extract.VerifyLabels(wb, s.layout.Metadata); err != nil {
			return nil, err
		}
	}
	md, err := extract.ExtractMetadata(wb, s.layout.Metadata)
	if err != nil {
		return nil, err
	}
	findings, err := extract.ExtractFindings(wb, s.layout.HeaderRow, s.layout.DataStartRow)
	if err != nil {
		return nil, err
	}
	return &models.Extraction{Metadata: md, Findings: findings}, nil
}

// store writes ext under the COID lock. Existence check, enterprise insert
// and findings insert share one transaction; a unique COID index makes the
// enterprise insert the final duplicate check.
func (s *Service) store(ctx context.Context, ext *models.Extraction) (*models.ImportResult, error) {
	coid := ext.Metadata.Identifier()
	release, err := s.locker.Acquire(ctx, coid, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release import lock", "coid", coid, "error", err)
		}
	}()

	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "audit.gateway.import")
	defer span.End()

	var result models.ImportResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		start := time.Now()
		exists, err := s.gateway.ExistsByIdentifier(ctx, coid)
		s.metrics.ObserveGateway("exists_by_identifier", start)
		if err != nil {
			return gatewayWrite("check identifier", err)
		}
		if exists {
			return ErrDuplicateEnterprise
		}

		start = time.Now()
		enterpriseID, err := s.gateway.InsertEnterprise(ctx, ext.Metadata)
		s.metrics.ObserveGateway("insert_enterprise", start)
		if errors.Is(err, sentinel.ErrConflict) {
			return ErrDuplicateEnterprise
		}
		if err != nil {
			return gatewayWrite("insert enterprise", err)
		}

		start = time.Now()
		n, err := s.gateway.InsertFindings(ctx, enterpriseID, ext.Findings)
		s.metrics.ObserveGateway("insert_findings", start)
		if err != nil {
			return gatewayWrite("insert findings", err)
		}

		result = models.ImportResult{EnterpriseID: enterpriseID, ExternalIdentifier: coid, FindingsInserted: n}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &result, nil
}

func (s *Service) rejectUpload(ctx context.Context, err error) {
	stage := stageOf(err)
	s.metrics.IncrementUpload("rejected", string(stage))
	s.logger.InfoContext(ctx, "upload rejected",
		"stage", stage,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
