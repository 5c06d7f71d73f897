package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"actionplan/internal/attachment"
	"actionplan/internal/audit/extract"
	"actionplan/internal/audit/models"
	"actionplan/internal/events"
	dErrors "actionplan/pkg/domain-errors"
	"actionplan/pkg/platform/sentinel"
	pstrings "actionplan/pkg/platform/strings"
	"actionplan/pkg/requestcontext"
)

// ListIdentifiers returns the stored COIDs in ascending order.
func (s *Service) ListIdentifiers(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()

	defer s.metrics.ObserveGateway("list_identifiers", time.Now())
	ids, err := s.gateway.ListIdentifiers(ctx)
	if err != nil {
		return nil, s.readError(err, "failed to list identifiers")
	}
	sort.Strings(ids)
	return ids, nil
}

// ListFindings returns every stored finding, or only those belonging to the
// given COIDs, ordered by enterprise and source row.
func (s *Service) ListFindings(ctx context.Context, identifiers ...string) ([]*models.Finding, error) {
	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()

	defer s.metrics.ObserveGateway("list_findings", time.Now())
	findings, err := s.gateway.ListFindings(ctx, models.FindingFilter{Identifiers: pstrings.DedupeAndTrim(identifiers)})
	if err != nil {
		return nil, s.readError(err, "failed to list findings")
	}
	return findings, nil
}

// UpdateFinding applies a partial edit to the correction, corrective action
// and release fields. Statuses must be one of the allowed values; dates may
// be given as YYYY-MM-DD or day.month.year.
func (s *Service) UpdateFinding(ctx context.Context, id uuid.UUID, update models.FindingUpdate) (*models.Finding, error) {
	ctx, span := s.tracer.Start(ctx, "audit.UpdateFinding")
	defer span.End()

	update.Normalize(extract.NormalizeDate)
	if err := update.Validate(); err != nil {
		s.metrics.IncrementFindingUpdate("invalid")
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()

	start := time.Now()
	var finding *models.Finding
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		finding, err = s.gateway.UpdateFinding(ctx, id, update)
		return err
	})
	s.metrics.ObserveGateway("update_finding", start)
	if err != nil {
		s.metrics.IncrementFindingUpdate("failed")
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "finding not found")
		case isTimeout(err):
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "gateway timed out")
		}
		return nil, dErrors.Wrap(gatewayWrite("update finding", err), dErrors.CodeGateway, "failed to update finding")
	}

	s.metrics.IncrementFindingUpdate("ok")
	s.logger.InfoContext(ctx, "finding updated",
		"finding_id", id,
		"coid", finding.ExternalIdentifier,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.New(ctx, events.FindingUpdated, id.String(), map[string]string{
		"coid": finding.ExternalIdentifier,
	}))
	return finding, nil
}

// AttachFile stores data as evidence for a finding and records its URL.
func (s *Service) AttachFile(ctx context.Context, findingID uuid.UUID, filename string, data []byte) (*models.Attachment, error) {
	ctx, span := s.tracer.Start(ctx, "audit.AttachFile")
	defer span.End()

	if s.files == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attachments are not configured")
	}
	name := attachment.SanitizeName(filename)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "filename is required")
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file is empty")
	}

	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()

	finding, err := s.gateway.FindFinding(ctx, findingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "finding not found")
		}
		return nil, s.readError(err, "failed to load finding")
	}

	url, err := s.files.Store(ctx, findingID.String(), name, data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store file")
	}

	att := &models.Attachment{
		ID:        uuid.New(),
		FindingID: findingID,
		Filename:  name,
		URL:       url,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	start := time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.gateway.AddAttachment(ctx, att)
	})
	s.metrics.ObserveGateway("add_attachment", start)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "finding not found")
		}
		return nil, dErrors.Wrap(gatewayWrite("add attachment", err), dErrors.CodeGateway, "failed to record attachment")
	}

	s.metrics.IncrementAttachments()
	s.logger.InfoContext(ctx, "attachment stored",
		"finding_id", findingID,
		"filename", name,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.New(ctx, events.AttachmentStored, findingID.String(), map[string]string{
		"coid":     finding.ExternalIdentifier,
		"filename": name,
		"url":      url,
	}))
	return att, nil
}

func (s *Service) readError(err error, msg string) error {
	switch {
	case isTimeout(err):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "gateway timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeGateway, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
