package api

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
)

const sniffLen = 512

var errUploadTooLarge = errors.NewStd("attachment too large")

// readUpload copies the multipart "file" field into an attachment of kind.
func (c *Controller) readUpload(ctx echo.Context, kind capture.AttachmentKind) (*capture.Attachment, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, invalidBody(err, "file")
	}
	if fh.Size > c.maxUpload {
		return nil, tooLarge(fh)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, invalidBody(err, "file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, c.maxUpload+1))
	if err != nil {
		return nil, invalidBody(err, "file")
	}
	if int64(len(data)) > c.maxUpload {
		return nil, tooLarge(fh)
	}

	return capture.NewAttachment(kind, fh.Filename, contentType(fh, data), int64(len(data)), capture.BytesSource(data)), nil
}

// contentType trusts the part header unless it is missing or generic.
func contentType(fh *multipart.FileHeader, data []byte) string {
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct != "" && ct != echo.MIMEOctetStream {
		return ct
	}
	return http.DetectContentType(data[:min(len(data), sniffLen)])
}

func tooLarge(fh *multipart.FileHeader) error {
	return errors.New(errUploadTooLarge).
		Component("api").
		Category(errors.CategoryLimit).
		Context(capture.ContextMessageID, string(i18n.MsgInvalidField)).
		Context("file", fh.Filename).
		Context("size", fh.Size).
		Build()
}

// AddAttachment accepts a multipart upload with "kind" and "file" fields.
func (c *Controller) AddAttachment(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.handleSessionError(ctx, err)
	}
	a, err := c.readUpload(ctx, capture.AttachmentKind(ctx.FormValue("kind")))
	if err != nil {
		return c.handleSessionError(ctx, err)
	}
	if err := s.AddAttachment(a); err != nil {
		return c.handleSessionError(ctx, err)
	}
	return c.respond(ctx, http.StatusCreated, s)
}

// RemoveAttachment drops one attachment by ID
func (c *Controller) RemoveAttachment(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		return s.RemoveAttachment(ctx.Param("attachment"))
	})(ctx)
}

// AttachGatePhoto accepts the post-submit photo of the locked gate.
func (c *Controller) AttachGatePhoto(ctx echo.Context) error {
	return c.sessionAction(func(ctx echo.Context, s *capture.Session) error {
		a, err := c.readUpload(ctx, capture.AttachmentGate)
		if err != nil {
			return err
		}
		return s.AttachGatePhoto(ctx.Request().Context(), a)
	})(ctx)
}
