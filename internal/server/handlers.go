package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cdrlens/internal/analysis"
	"cdrlens/internal/detector"
	"cdrlens/internal/ingest"
	"cdrlens/internal/models"
	"cdrlens/internal/normalizer"
	"cdrlens/internal/report"
)

const thresholdField = "threshold."

var errMissingFile = errors.New("multipart field 'file' is required")

// DetectorInfo describes a detector in the catalogue listing.
type DetectorInfo struct {
	Name     string           `json:"name"`
	Label    string           `json:"label"`
	Summary  string           `json:"summary"`
	Family   models.Family    `json:"family"`
	Required []string         `json:"required_columns"`
	Params   []detector.Param `json:"thresholds"`
}

// listDetectors handles GET /api/v1/detectors?family=
func (s *Server) listDetectors(c *gin.Context) {
	var family models.Family

	switch strings.ToUpper(strings.TrimSpace(c.Query("family"))) {
	case "":
	case string(models.FamilyCDR):
		family = models.FamilyCDR
	case string(models.FamilyIPDR):
		family = models.FamilyIPDR
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown family %q", c.Query("family"))})

		return
	}

	specs := s.orch.Registry().List(family)
	out := make([]DetectorInfo, 0, len(specs))

	for _, spec := range specs {
		out = append(out, DetectorInfo{
			Name:     spec.Name,
			Label:    spec.Label,
			Summary:  spec.Summary,
			Family:   spec.Family,
			Required: spec.Required,
			Params:   spec.Params,
		})
	}

	c.JSON(http.StatusOK, gin.H{"detectors": out})
}

// analyze handles POST /api/v1/analyses
func (s *Server) analyze(c *gin.Context) {
	req, closer, err := s.bindRequest(c)
	if err != nil {
		s.fail(c, err)

		return
	}
	defer closer.Close()

	run, err := s.orch.Run(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, run)
}

// schemaCheck handles POST /api/v1/schema-check
func (s *Server) schemaCheck(c *gin.Context) {
	req, closer, err := s.bindRequest(c)
	if err != nil {
		s.fail(c, err)

		return
	}
	defer closer.Close()

	check, err := s.orch.Check(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, check)
}

// report handles POST /api/v1/reports?format=
func (s *Server) report(c *gin.Context) {
	format := c.DefaultQuery("format", s.format)

	exp, err := report.ExporterFor(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "formats": report.Formats()})

		return
	}

	req, closer, err := s.bindRequest(c)
	if err != nil {
		s.fail(c, err)

		return
	}
	defer closer.Close()

	run, err := s.orch.Run(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)

		return
	}

	doc, err := report.BuildReport(run)
	if err != nil {
		s.reportFailed(c, run, err)

		return
	}

	path, cleanup, err := report.WriteArtifact(s.dir, doc, exp)
	if err != nil {
		s.reportFailed(c, run, err)

		return
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		s.reportFailed(c, run, err)

		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.reportFailed(c, run, err)

		return
	}

	headers := map[string]string{"X-Report-Digest": doc.Digest, "X-Run-ID": run.ID}
	for key, values := range s.http.AttachmentHeaders(doc.Filename(exp.Extension()), exp.ContentType(), nil) {
		if key != "Content-Type" {
			headers[key] = strings.Join(values, ", ")
		}
	}

	c.DataFromReader(http.StatusOK, info.Size(), exp.ContentType(), f, headers)
}

func (s *Server) reportFailed(c *gin.Context, run *models.AnalysisRun, err error) {
	s.log.Error("report generation failed", "run_id", run.ID, "error", err)

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": fmt.Sprintf("report generation failed: %v", err),
		"run":   run,
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// bindRequest reads the multipart upload into an analysis request. The
// returned closer releases the uploaded file.
func (s *Server) bindRequest(c *gin.Context) (analysis.Request, interface{ Close() error }, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	var req analysis.Request

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nopCloser{}, err
		}

		return req, nopCloser{}, &ingest.ParseError{Reason: errMissingFile.Error(), Err: err}
	}

	thresholds, err := thresholdsFrom(c.Request.MultipartForm)
	if err != nil {
		return req, nopCloser{}, err
	}

	req = analysis.Request{
		Source:     header.Filename,
		Detector:   c.PostForm("detector"),
		Thresholds: thresholds,
		Case: models.CaseMetadata{
			CaseNumber:   c.PostForm("case_number"),
			Investigator: c.PostForm("investigator"),
			CaseName:     c.PostForm("case_name"),
			Remarks:      c.PostForm("remarks"),
		},
	}

	if tag := c.PostForm("format"); tag != "" {
		f, err := ingest.ParseFormat(tag)
		if err != nil {
			return req, nopCloser{}, err
		}

		req.Format = f
	}

	file, err := header.Open()
	if err != nil {
		return req, nopCloser{}, &ingest.ParseError{Reason: "cannot open upload", Err: err}
	}

	req.Reader = file

	return req, file, nil
}

func thresholdsFrom(form *multipart.Form) (map[string]float64, error) {
	if form == nil {
		return nil, nil
	}

	out := map[string]float64{}

	for key, values := range form.Value {
		name, ok := strings.CutPrefix(key, thresholdField)
		if !ok || len(values) == 0 {
			continue
		}

		raw := strings.TrimSpace(values[len(values)-1])

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", detector.ErrThresholdNotNumber, name, raw)
		}

		out[name] = v
	}

	return out, nil
}

// fail writes the error response for a failed request.
func (s *Server) fail(c *gin.Context, err error) {
	status, body := errorResponse(err)

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		s.log.Warn("request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var stageErr *analysis.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = stageErr.Stage
	}

	var (
		schemaErr   *normalizer.SchemaError
		parseErr    *ingest.ParseError
		analysisErr *analysis.AnalysisError
		tooLarge    *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, body
	case errors.As(err, &schemaErr):
		body["missing_columns"] = schemaErr.Missing

		return http.StatusUnprocessableEntity, body
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, body
	case errors.Is(err, detector.ErrUnknownDetector),
		errors.Is(err, detector.ErrUnknownThreshold),
		errors.Is(err, detector.ErrThresholdBelowMin),
		errors.Is(err, detector.ErrThresholdAboveMax),
		errors.Is(err, detector.ErrThresholdConflict),
		errors.Is(err, detector.ErrThresholdNotNumber):
		return http.StatusBadRequest, body
	case errors.As(err, &analysisErr):
		body["detector"] = analysisErr.Detector

		return http.StatusInternalServerError, body
	}

	return http.StatusInternalServerError, body
}
