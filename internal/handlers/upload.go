package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	apperrors "basket-dashboard/internal/errors"
)

// uploadField is the multipart field carrying the spreadsheet.
const uploadField = "file"

// readUpload parses the multipart body and opens the uploaded spreadsheet.
// Errors are *AppError values ready to be written.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	if r.ContentLength > maxBytes {
		return nil, nil, apperrors.TooLarge(fmt.Sprintf("upload exceeds %d bytes", maxBytes))
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperrors.TooLarge(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return nil, nil, apperrors.BadRequestWrap(err, "expected a multipart form upload")
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, nil, apperrors.BadRequestWrap(err, fmt.Sprintf("no file in form field %q", uploadField))
	}
	return file, header, nil
}

// noticeFor returns the message shown to users for a failed upload.
func noticeFor(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
