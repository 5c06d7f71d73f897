package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"actionplan/internal/audit/models"
	"actionplan/internal/audit/service"
	"actionplan/pkg/platform/sentinel"
	"actionplan/pkg/requestcontext"
)

type gateway interface {
	service.Gateway
	service.Transactor
}

// GatewaySuite holds the behaviour every gateway implementation shares.
// Concrete suites set store in SetupTest.
type GatewaySuite struct {
	suite.Suite
	store gateway
}

var baseTime = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func metadata(company, coid string) models.AuditMetadata {
	return models.AuditMetadata{
		CompanyName:        ptr(company),
		ExternalIdentifier: ptr(coid),
		ReferenceStandard:  ptr("IFS Food 8"),
		AuditType:          ptr("Certification"),
		AuditDate:          ptr("2024-03-05"),
	}
}

func record(row int, no string) models.FindingRecord {
	return models.FindingRecord{
		SourceRow:              row,
		RequirementNo:          ptr(no),
		RequirementText:        ptr("Requirement " + no),
		CorrectionStatus:       models.StatusInProgress,
		CorrectiveActionStatus: models.StatusInProgress,
	}
}

func (s *GatewaySuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), baseTime.Add(offset))
}

func (s *GatewaySuite) seed(ctx context.Context, coid string, records ...models.FindingRecord) uuid.UUID {
	id, err := s.store.InsertEnterprise(ctx, metadata("ACME "+coid, coid))
	s.Require().NoError(err)
	n, err := s.store.InsertFindings(ctx, id, records)
	s.Require().NoError(err)
	s.Require().Equal(len(records), n)
	return id
}

func (s *GatewaySuite) TestInsertAndListOrdersBySourceRow() {
	ctx := s.at(0)
	withExtra := record(15, "2.1")
	withExtra.Extra = map[string]string{"Auditor note": "see photo"}
	id := s.seed(ctx, "C-100", withExtra, record(14, "1.1"))

	findings, err := s.store.ListFindings(ctx, models.FindingFilter{})
	s.Require().NoError(err)
	s.Require().Len(findings, 2)

	s.Equal(14, findings[0].SourceRow)
	s.Equal(15, findings[1].SourceRow)
	for _, f := range findings {
		s.Equal(id, f.EnterpriseID)
		s.Equal("C-100", f.ExternalIdentifier)
		s.NotNil(f.Attachments)
		s.Empty(f.Attachments)
	}
	s.Equal("1.1", *findings[0].RequirementNo)
	s.Nil(findings[0].CorrectionDescription)
	s.Equal(models.StatusInProgress, findings[0].CorrectionStatus)
	s.Equal(map[string]string{"Auditor note": "see photo"}, findings[1].Extra)
}

func (s *GatewaySuite) TestListFiltersByIdentifier() {
	s.seed(s.at(0), "C-1", record(14, "1.1"))
	s.seed(s.at(time.Second), "C-2", record(14, "9.9"), record(15, "9.10"))

	findings, err := s.store.ListFindings(context.Background(), models.FindingFilter{Identifiers: []string{"C-2"}})
	s.Require().NoError(err)
	s.Require().Len(findings, 2)
	for _, f := range findings {
		s.Equal("C-2", f.ExternalIdentifier)
	}

	all, err := s.store.ListFindings(context.Background(), models.FindingFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("C-1", all[0].ExternalIdentifier)

	none, err := s.store.ListFindings(context.Background(), models.FindingFilter{Identifiers: []string{"C-404"}})
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *GatewaySuite) TestDuplicateIdentifierConflicts() {
	ctx := s.at(0)
	s.seed(ctx, "C-7")

	exists, err := s.store.ExistsByIdentifier(ctx, "C-7")
	s.Require().NoError(err)
	s.True(exists)

	_, err = s.store.InsertEnterprise(ctx, metadata("Other", "C-7"))
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *GatewaySuite) TestRunInTxRollsBack() {
	ctx := s.at(0)
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		id, err := s.store.InsertEnterprise(ctx, metadata("ACME", "C-rollback"))
		if err != nil {
			return err
		}
		if _, err := s.store.InsertFindings(ctx, id, []models.FindingRecord{record(14, "1.1")}); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	exists, err := s.store.ExistsByIdentifier(ctx, "C-rollback")
	s.Require().NoError(err)
	s.False(exists)

	findings, err := s.store.ListFindings(ctx, models.FindingFilter{})
	s.Require().NoError(err)
	s.Empty(findings)
}

func (s *GatewaySuite) TestRunInTxCommits() {
	ctx := s.at(0)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.InsertEnterprise(ctx, metadata("ACME", "C-commit"))
		return err
	})
	s.Require().NoError(err)

	exists, err := s.store.ExistsByIdentifier(ctx, "C-commit")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *GatewaySuite) TestListIdentifiersSorted() {
	s.seed(s.at(0), "C-3")
	s.seed(s.at(time.Second), "C-1")
	s.seed(s.at(2*time.Second), "C-2")

	ids, err := s.store.ListIdentifiers(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"C-1", "C-2", "C-3"}, ids)
}

func (s *GatewaySuite) TestUpdateFinding() {
	rec := record(14, "1.1")
	rec.CorrectionEvidence = ptr("old evidence")
	s.seed(s.at(0), "C-upd", rec)
	findings, err := s.store.ListFindings(context.Background(), models.FindingFilter{})
	s.Require().NoError(err)
	id := findings[0].ID

	validated := models.StatusValidated
	updated, err := s.store.UpdateFinding(s.at(time.Hour), id, models.FindingUpdate{
		CorrectionDescription: ptr("Replaced the seal"),
		CorrectionStatus:      &validated,
		CorrectionEvidence:    ptr(""),
	})
	s.Require().NoError(err)
	s.Equal("Replaced the seal", *updated.CorrectionDescription)
	s.Equal(models.StatusValidated, updated.CorrectionStatus)
	s.Equal(models.StatusInProgress, updated.CorrectiveActionStatus)
	s.Nil(updated.CorrectionEvidence)
	s.Equal("1.1", *updated.RequirementNo)
	s.True(updated.UpdatedAt.Equal(baseTime.Add(time.Hour)))

	reloaded, err := s.store.FindFinding(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusValidated, reloaded.CorrectionStatus)
	s.Nil(reloaded.CorrectionEvidence)
}

func (s *GatewaySuite) TestUpdateMissingFinding() {
	_, err := s.store.UpdateFinding(context.Background(), uuid.New(), models.FindingUpdate{CorrectionDescription: ptr("x")})
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	_, err = s.store.FindFinding(context.Background(), uuid.New())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *GatewaySuite) TestAttachments() {
	s.seed(s.at(0), "C-att", record(14, "1.1"))
	findings, err := s.store.ListFindings(context.Background(), models.FindingFilter{})
	s.Require().NoError(err)
	id := findings[0].ID

	att := &models.Attachment{
		ID:        uuid.New(),
		FindingID: id,
		Filename:  "photo.jpg",
		URL:       "http://localhost:8080/files/" + id.String() + "/photo.jpg",
		CreatedAt: baseTime,
	}
	s.Require().NoError(s.store.AddAttachment(context.Background(), att))

	f, err := s.store.FindFinding(context.Background(), id)
	s.Require().NoError(err)
	s.Require().Len(f.Attachments, 1)
	s.Equal("photo.jpg", f.Attachments[0].Filename)
	s.Equal(att.URL, f.Attachments[0].URL)

	listed, err := s.store.ListFindings(context.Background(), models.FindingFilter{Identifiers: []string{"C-att"}})
	s.Require().NoError(err)
	s.Len(listed[0].Attachments, 1)

	err = s.store.AddAttachment(context.Background(), &models.Attachment{ID: uuid.New(), FindingID: uuid.New(), Filename: "x", URL: "y"})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *GatewaySuite) TestInsertNoFindings() {
	id, err := s.store.InsertEnterprise(s.at(0), metadata("Empty", "C-empty"))
	s.Require().NoError(err)
	n, err := s.store.InsertFindings(s.at(0), id, nil)
	s.Require().NoError(err)
	s.Zero(n)
}
