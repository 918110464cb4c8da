package api

import (
	"image"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/export"
	"github.com/tphakala/ppe-go/internal/logger"
)

const (
	apiPrefix          = "/api/v1"
	defaultRecentLimit = 10
)

// InspectUpload handles a multipart upload with an "image" file and an
// optional "source" field.
func (c *Controller) InspectUpload(ctx echo.Context) error {
	source, err := compliance.ParseSource(ctx.FormValue("source"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid source", http.StatusBadRequest)
	}

	fh, err := ctx.FormFile("image")
	if err != nil {
		return c.HandleError(ctx, err, "Missing image file in form field \"image\"", http.StatusBadRequest)
	}
	f, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read uploaded image", http.StatusBadRequest)
	}
	defer f.Close()

	img, err := export.DecodeImage(f)
	if err != nil {
		return c.HandleError(ctx, err, "Image must be a valid JPEG or PNG", http.StatusBadRequest)
	}
	return c.inspect(ctx, img, source)
}

// InspectFrame handles a single webcam frame posted as the raw body.
func (c *Controller) InspectFrame(ctx echo.Context) error {
	mediaType, _, _ := mime.ParseMediaType(ctx.Request().Header.Get(echo.HeaderContentType))
	if mediaType != "image/jpeg" && mediaType != "image/png" {
		return c.HandleError(ctx, nil, "Content-Type must be image/jpeg or image/png", http.StatusUnsupportedMediaType)
	}

	source := compliance.SourceWebcam
	if q := ctx.QueryParam("source"); q != "" {
		parsed, err := compliance.ParseSource(q)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid source", http.StatusBadRequest)
		}
		source = parsed
	}

	img, err := export.DecodeImage(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, err, "Frame must be a valid JPEG or PNG", http.StatusBadRequest)
	}
	return c.inspect(ctx, img, source)
}

func (c *Controller) inspect(ctx echo.Context, img image.Image, source compliance.Source) error {
	report, err := c.inspector.Inspect(ctx.Request().Context(), img, source)
	if err != nil {
		return c.HandleError(ctx, err, "Inspection failed", statusFor(err))
	}

	art := &artifacts{report: report}
	if report.Annotated != nil {
		if art.jpeg, err = export.JPEGBytes(report.Annotated); err != nil {
			c.log.Warn("failed to encode annotated image",
				logger.String("id", report.ID), logger.Error(err))
		}
	}
	if art.detectionsJSON, err = export.MarshalDetections(report.Detections); err != nil {
		return c.HandleError(ctx, err, "Failed to encode detections", http.StatusInternalServerError)
	}
	c.artifacts.put(report.ID, art)

	return ctx.JSON(http.StatusCreated, newInspectionResponse(report, apiPrefix, art.jpeg != nil))
}

// GetInspection returns a recent report from the cache, else from history.
func (c *Controller) GetInspection(ctx echo.Context) error {
	id := ctx.Param("id")
	if art, ok := c.artifacts.get(id); ok {
		return ctx.JSON(http.StatusOK, newInspectionResponse(art.report, apiPrefix, art.jpeg != nil))
	}
	report, err := c.inspector.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Inspection not found", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, newInspectionResponse(report, apiPrefix, false))
}

// GetInspectionImage serves the annotated JPEG of a recent inspection.
func (c *Controller) GetInspectionImage(ctx echo.Context) error {
	id := ctx.Param("id")
	art, ok := c.artifacts.get(id)
	if !ok || art.jpeg == nil {
		return c.HandleError(ctx, errors.NotFound("annotated image", id),
			"Annotated image is no longer available", http.StatusNotFound)
	}
	setAttachment(ctx, export.ImageFilename)
	return ctx.Blob(http.StatusOK, "image/jpeg", art.jpeg)
}

// GetInspectionDetections serves detections.json.
func (c *Controller) GetInspectionDetections(ctx echo.Context) error {
	id := ctx.Param("id")
	var data []byte
	if art, ok := c.artifacts.get(id); ok {
		data = art.detectionsJSON
	} else {
		report, err := c.inspector.Get(ctx.Request().Context(), id)
		if err != nil {
			return c.HandleError(ctx, err, "Inspection not found", statusFor(err))
		}
		if data, err = export.MarshalDetections(report.Detections); err != nil {
			return c.HandleError(ctx, err, "Failed to encode detections", http.StatusInternalServerError)
		}
	}
	setAttachment(ctx, export.DetectionsFilename)
	return ctx.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// GetRecentInspections lists persisted inspections, newest first.
func (c *Controller) GetRecentInspections(ctx echo.Context) error {
	q := RecentQuery{Limit: defaultRecentLimit}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleError(ctx, err, "limit must be an integer", http.StatusBadRequest)
		}
		q.Limit = limit
	}
	if err := ctx.Validate(&q); err != nil {
		return c.HandleError(ctx, err, "limit must be between 1 and 100", http.StatusBadRequest)
	}

	reports, err := c.inspector.Recent(ctx.Request().Context(), q.Limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load inspection history", statusFor(err))
	}
	out := make([]InspectionResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, newInspectionResponse(r, apiPrefix, c.artifacts.hasImage(r.ID)))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetInspectionStats summarizes the persisted history.
func (c *Controller) GetInspectionStats(ctx echo.Context) error {
	summary, err := c.inspector.Summary(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load inspection statistics", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, summary)
}

func setAttachment(ctx echo.Context, filename string) {
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
