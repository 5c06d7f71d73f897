package handler

import (
	"errors"
	"io"
	"mime/multipart"

	dErrors "actionplan/pkg/domain-errors"
)

// multipartFile streams the multipart body until the "file" part and returns
// it with its client-supplied name. Other parts are skipped.
func multipartFile(body io.Reader, boundary string) (io.Reader, string, error) {
	if boundary == "" {
		return nil, "", dErrors.New(dErrors.CodeBadRequest, "multipart boundary is missing")
	}
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required")
		}
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart body")
		}
		if part.FormName() == uploadField {
			return part, part.FileName(), nil
		}
	}
}
