package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

// Transcribe sends recorded audio to the transcription endpoint
func (c *Client) Transcribe(ctx context.Context, audio File, language string) (*Transcription, error) {
	body, contentType, err := multipartBody("audio", audio, map[string]string{"language": language})
	if err != nil {
		return nil, errors.New(err).
			Component("backend").
			Category(errors.CategoryAudio).
			Context("operation", metrics.OpTranscribe).
			Build()
	}

	var out Transcription
	err = c.do(ctx, request{
		op:          metrics.OpTranscribe,
		method:      http.MethodPost,
		path:        pathTranscribe,
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}

	c.log.Debug("audio transcribed",
		logger.String("language", out.Language),
		logger.Int("transcript_length", len(out.Transcript)))
	return &out, nil
}

// CreateObservation stores a daily observation
func (c *Client) CreateObservation(ctx context.Context, req *CreateObservationRequest) (*Observation, error) {
	if req == nil || (strings.TrimSpace(req.AnimalName) == "" && req.AnimalID == "") {
		return nil, errors.ValidationError("animal is required")
	}

	var out Observation
	if err := c.doJSON(ctx, metrics.OpCreate, http.MethodPost, pathObservations, req, &out); err != nil {
		return nil, err
	}

	c.log.Info("observation created",
		logger.String("observation_id", out.ID),
		logger.Bool("emergency", req.IsEmergency))
	return &out, nil
}

// SendEmergencyAlert notifies supervisors through the backend
func (c *Client) SendEmergencyAlert(ctx context.Context, alert *EmergencyAlert) error {
	if alert == nil || alert.Description == "" {
		return errors.ValidationError("emergency description is required")
	}
	if err := c.doJSON(ctx, metrics.OpAlert, http.MethodPost, pathEmergencyAlert, alert, nil); err != nil {
		return err
	}
	c.log.Info("emergency alert sent",
		logger.String("animal_id", alert.AnimalID),
		logger.String("observation_id", alert.ObservationID))
	return nil
}

// AddMedia uploads an image or video to an existing observation
func (c *Client) AddMedia(ctx context.Context, observationID string, mediaType MediaType, file File) (*MediaResult, error) {
	if observationID == "" {
		return nil, errors.ValidationError("observation id is required")
	}

	body, contentType, err := multipartBody("file", file, map[string]string{"media_type": string(mediaType)})
	if err != nil {
		return nil, errors.New(err).
			Component("backend").
			Category(errors.CategoryFileIO).
			Context("operation", metrics.OpAddMedia).
			Build()
	}

	var out MediaResult
	err = c.do(ctx, request{
		op:          metrics.OpAddMedia,
		method:      http.MethodPost,
		path:        fmt.Sprintf(pathAddMediaFmt, url.PathEscape(observationID)),
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StructuringEnabled reports whether a server-side structuring endpoint is configured
func (c *Client) StructuringEnabled() bool {
	return c.config.StructurePath != ""
}

// Structure asks the configured endpoint to turn a narrative into checklist fields
func (c *Client) Structure(ctx context.Context, req *StructureRequest) (*FormData, error) {
	if !c.StructuringEnabled() {
		return nil, errors.Newf("server-side structuring is not configured").
			Component("backend").
			Category(errors.CategoryConfiguration).
			Build()
	}
	var out FormData
	if err := c.doJSON(ctx, metrics.OpStructure, http.MethodPost, c.config.StructurePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// multipartBody buffers a multipart form with one file part and plain fields.
func multipartBody(fileField string, f File, fields map[string]string) (io.Reader, string, error) {
	if f.Open == nil {
		return nil, "", fmt.Errorf("file %q has no content", f.Name)
	}
	src, err := f.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, f.Name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("read %q: %w", f.Name, err)
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
