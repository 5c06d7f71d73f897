package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"actionplan/internal/audit/handler/mocks"
	"actionplan/internal/audit/models"
	dErrors "actionplan/pkg/domain-errors"
	"actionplan/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.svc, logger, WithMaxUploadBytes(64)).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) upload(target, field, filename string, data []byte) *httptest.ResponseRecorder {
	return s.do(testutil.NewUploadRequest(s.T(), target, field, filename, data))
}

func decodeError(s *HandlerSuite, rec *httptest.ResponseRecorder) map[string]string {
	return *testutil.UnmarshalResponse[map[string]string](s.T(), rec)
}

func (s *HandlerSuite) TestImportCreated() {
	result := &models.ImportResult{EnterpriseID: uuid.New(), ExternalIdentifier: "C-1", FindingsInserted: 3}
	s.svc.EXPECT().Import(gomock.Any(), []byte("xlsx-bytes")).Return(result, nil)

	rec := s.upload("/uploads", "file", "plan.xlsx", []byte("xlsx-bytes"))

	s.Equal(http.StatusCreated, rec.Code)
	var got models.ImportResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal(*result, got)
}

func (s *HandlerSuite) TestImportRawBody() {
	s.svc.EXPECT().Import(gomock.Any(), []byte("raw")).Return(&models.ImportResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader("raw"))
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	s.Equal(http.StatusCreated, s.do(req).Code)
}

func (s *HandlerSuite) TestImportMissingFileField() {
	rec := s.upload("/uploads", "document", "plan.xlsx", []byte("x"))

	desc := testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	s.Equal(`multipart field "file" is required`, desc)
}

func (s *HandlerSuite) TestImportTooLarge() {
	rec := s.upload("/uploads", "file", "plan.xlsx", bytes.Repeat([]byte("a"), 65))

	desc := testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	s.Equal("file exceeds 64 bytes", desc)
}

func (s *HandlerSuite) TestImportErrorsMapToStatus() {
	cases := []struct {
		err    error
		status int
	}{
		{dErrors.New(dErrors.CodeBadRequest, "document stage: file is not a readable spreadsheet"), http.StatusBadRequest},
		{dErrors.New(dErrors.CodeValidation, "metadata stage: company_name is required"), http.StatusUnprocessableEntity},
		{dErrors.New(dErrors.CodeConflict, "insert stage: enterprise C-1 already imported"), http.StatusConflict},
		{dErrors.New(dErrors.CodeGateway, "insert stage: gateway write failed"), http.StatusBadGateway},
		{dErrors.New(dErrors.CodeTimeout, "insert stage: gateway timed out"), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		s.svc.EXPECT().Import(gomock.Any(), gomock.Any()).Return(nil, tc.err)
		rec := s.upload("/uploads", "file", "plan.xlsx", []byte("x"))
		s.Equal(tc.status, rec.Code, tc.err.Error())
		s.Equal(tc.err.(*dErrors.Error).Message, decodeError(s, rec)["error_description"])
	}
}

func (s *HandlerSuite) TestPreview() {
	coid := "C-1"
	s.svc.EXPECT().Preview(gomock.Any(), []byte("x")).Return(&models.Extraction{
		Metadata: models.AuditMetadata{ExternalIdentifier: &coid},
		Findings: []models.FindingRecord{{SourceRow: 14}},
	}, nil)

	rec := s.upload("/uploads/preview", "file", "plan.xlsx", []byte("x"))

	s.Equal(http.StatusOK, rec.Code)
	var got struct {
		Metadata models.AuditMetadata   `json:"metadata"`
		Findings []models.FindingRecord `json:"findings"`
		Count    int                    `json:"count"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal("C-1", got.Metadata.Identifier())
	s.Equal(1, got.Count)
	s.Equal(14, got.Findings[0].SourceRow)
}

func (s *HandlerSuite) TestListIdentifiers() {
	s.svc.EXPECT().ListIdentifiers(gomock.Any()).Return([]string{"C-1", "C-2"}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/enterprises/identifiers", nil))

	s.Equal(http.StatusOK, rec.Code)
	var got map[string][]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal([]string{"C-1", "C-2"}, got["identifiers"])
}

func (s *HandlerSuite) TestListFindingsSplitsCOIDs() {
	s.svc.EXPECT().ListFindings(gomock.Any(), "C-1", "C-2", "C-3").Return([]*models.Finding{}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/findings?coid=C-1,C-2&coid=C-3", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"findings":[],"count":0}`, rec.Body.String())
}

func (s *HandlerSuite) TestUpdateFinding() {
	id := uuid.New()
	s.svc.EXPECT().UpdateFinding(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, u models.FindingUpdate) (*models.Finding, error) {
			s.Equal("Soumise", string(*u.CorrectionStatus))
			s.Nil(u.ReleaseDate)
			return &models.Finding{ID: id}, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/findings/"+id.String(), map[string]string{"correction_status": "Soumise"})

	s.Equal(http.StatusOK, s.do(req).Code)
}

func (s *HandlerSuite) TestUpdateFindingRejectsUnknownFields() {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/findings/"+id.String(), strings.NewReader(`{"requirement_no":"9"}`))

	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid request body", decodeError(s, rec)["error_description"])
}

func (s *HandlerSuite) TestUpdateFindingBadID() {
	req := httptest.NewRequest(http.MethodPatch, "/findings/not-a-uuid", strings.NewReader(`{}`))

	s.Equal(http.StatusBadRequest, s.do(req).Code)
}

func (s *HandlerSuite) TestUpdateFindingNotFound() {
	id := uuid.New()
	s.svc.EXPECT().UpdateFinding(gomock.Any(), id, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "finding not found"))

	req := httptest.NewRequest(http.MethodPatch, "/findings/"+id.String(), strings.NewReader(`{"correction_description":"x"}`))

	s.Equal(http.StatusNotFound, s.do(req).Code)
}

func (s *HandlerSuite) TestAttach() {
	id := uuid.New()
	att := &models.Attachment{ID: uuid.New(), FindingID: id, Filename: "photo.jpg", URL: "http://x/files/photo.jpg"}
	s.svc.EXPECT().AttachFile(gomock.Any(), id, "photo.jpg", []byte("jpeg")).Return(att, nil)

	rec := s.upload("/findings/"+id.String()+"/attachments", "file", "photo.jpg", []byte("jpeg"))

	s.Equal(http.StatusCreated, rec.Code)
	var got models.Attachment
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal(att.URL, got.URL)
}

func (s *HandlerSuite) TestInternalErrorHidesDescription() {
	s.svc.EXPECT().ListIdentifiers(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "pq: relation does not exist"))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/enterprises/identifiers", nil))

	s.Equal(http.StatusInternalServerError, rec.Code)
	body := decodeError(s, rec)
	s.Equal("internal_error", body["error"])
	s.NotContains(body, "error_description")
}
