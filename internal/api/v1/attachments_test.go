package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/i18n"
)

func TestAttachmentLifecycle(t *testing.T) {
	env := newTestEnv(t, capture.Options{})
	snap := env.create(t)
	path := sessionPath(snap.ID, "/attachments")

	rec := env.upload(t, path, "animal", "rani.jpg", "image/jpeg", []byte("jpeg"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap = decode[SessionResponse](t, rec)
	require.Len(t, snap.Attachments, 1)
	photo := snap.Attachments[0]
	assert.Equal(t, capture.AttachmentAnimal, photo.Kind)
	assert.Equal(t, "rani.jpg", photo.Name)
	assert.Equal(t, int64(4), photo.Size)

	// video needs the emergency flag
	rec = env.upload(t, path, "emergency", "clip.mp4", "video/mp4", []byte("mp4"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, i18n.T("en", i18n.MsgVideoRequiresSOS), decode[ErrorResponse](t, rec).Message)

	rec = env.do(t, http.MethodPatch, sessionPath(snap.ID, "/input"), InputRequest{Emergency: ptr(true)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.upload(t, path, "emergency", "clip.mp4", "video/mp4", []byte("mp4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.upload(t, path, "emergency", "again.mp4", "video/mp4", []byte("mp4"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, i18n.T("en", i18n.MsgVideoLimit), decode[ErrorResponse](t, rec).Message)

	// clearing the flag drops the video, the photo stays
	rec = env.do(t, http.MethodPatch, sessionPath(snap.ID, "/input"), InputRequest{Emergency: ptr(false)})
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[SessionResponse](t, rec)
	require.Len(t, snap.Attachments, 1)
	assert.Equal(t, photo.ID, snap.Attachments[0].ID)

	rec = env.do(t, http.MethodDelete, sessionPath(snap.ID, "/attachments/", photo.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[SessionResponse](t, rec).Attachments)

	rec = env.do(t, http.MethodDelete, sessionPath(snap.ID, "/attachments/", photo.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachmentRejections(t *testing.T) {
	env := newTestEnv(t, capture.Options{})
	snap := env.create(t)
	path := sessionPath(snap.ID, "/attachments")

	// enclosure photos must be images
	rec := env.upload(t, path, "enclosure", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// gate photos only go through the safety check
	rec = env.upload(t, path, "gate", "gate.jpg", "image/jpeg", []byte("jpeg"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, path, "animal", "big.jpg", "image/jpeg", make([]byte, 2<<20))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// a request without a file part
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("kind", "animal"))
	require.NoError(t, w.Close())
	rec = env.do(t, http.MethodPost, path, rawJSON(buf.String()), "Content-Type", w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, decode[SessionResponse](t, env.do(t, http.MethodGet, sessionPath(snap.ID), nil)).Attachments)
}

func TestContentTypeSniffing(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	h := make(textproto.MIMEHeader)
	fh := &multipart.FileHeader{Filename: "x", Header: h}
	assert.Equal(t, "image/png", contentType(fh, png))

	h.Set("Content-Type", "application/octet-stream")
	assert.Equal(t, "image/png", contentType(fh, png))

	h.Set("Content-Type", "image/heic")
	assert.Equal(t, "image/heic", contentType(fh, png))
}

func TestUploadWithoutContentTypeIsSniffed(t *testing.T) {
	env := newTestEnv(t, capture.Options{})
	snap := env.create(t)

	rec := env.upload(t, sessionPath(snap.ID, "/attachments"), "enclosure", "pen.png", "",
		[]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap = decode[SessionResponse](t, rec)
	require.Len(t, snap.Attachments, 1)
	assert.Equal(t, "image/png", snap.Attachments[0].ContentType)
}
