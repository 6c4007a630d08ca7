package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ssis-checker/internal/compressor"
	"ssis-checker/internal/extractor"
	"ssis-checker/internal/nutrition"
	"ssis-checker/internal/pipeline"
)

type extractRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

type extractResponse struct {
	Success bool             `json:"success"`
	Data    nutrition.Record `json:"data"`
	RawText string           `json:"rawText"`
}

type compressResponse struct {
	MimeType     string               `json:"mimeType"`
	OriginalSize int64                `json:"originalSize"`
	FinalSize    int64                `json:"finalSize"`
	Attempts     []compressor.Attempt `json:"attempts"`
	ImageBase64  string               `json:"imageBase64"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleExtractBase64(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*s.maxBody())).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageBase64 == "" {
		s.writeError(w, "Base64 image data is required", http.StatusBadRequest)
		return
	}

	if !s.checkMimeType(w, req.MimeType) {
		return
	}

	data, err := decodeBase64Image(req.ImageBase64)
	if err != nil {
		s.writeError(w, "Invalid base64 image data", http.StatusBadRequest)
		return
	}

	outcome, err := s.pipeline.Compress(requestID, data, req.MimeType)
	if err != nil {
		s.writeStageError(w, err)
		return
	}

	extraction, err := s.pipeline.Extract(r.Context(), requestID, outcome.Data, outcome.MimeType)
	if err != nil {
		s.writeStageError(w, err)
		return
	}

	s.writeJSON(w, extractResponse{
		Success: true,
		Data:    extraction.Record,
		RawText: extraction.RawText,
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	data, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	outcome, err := s.pipeline.Compress(RequestID(r.Context()), data, mimeType)
	if err != nil {
		s.writeStageError(w, err)
		return
	}

	s.writeJSON(w, compressResponse{
		MimeType:     outcome.MimeType,
		OriginalSize: outcome.OriginalSize,
		FinalSize:    outcome.Size,
		Attempts:     outcome.Attempts,
		ImageBase64:  base64.StdEncoding.EncodeToString(outcome.Data),
	})
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	var record nutrition.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody())).Decode(&record); err != nil {
		s.writeError(w, "Invalid nutrition record: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, s.pipeline.Evaluate(record))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	data, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	s.broadcastWSMessage("scan_started", map[string]interface{}{
		"requestId": requestID,
		"size":      len(data),
	})

	result, err := s.pipeline.Run(r.Context(), requestID, data, mimeType)
	if err != nil {
		s.broadcastWSMessage("scan_error", map[string]string{
			"requestId": requestID,
			"error":     err.Error(),
		})
		s.writeStageError(w, err)
		return
	}

	s.broadcastWSMessage("scan_completed", map[string]interface{}{
		"requestId":   requestID,
		"productName": result.ProductName,
		"isCompliant": result.Verdict.IsCompliant,
		"summary":     result.Summary,
	})
	s.writeJSON(w, result)
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	collector := s.pipeline.Stats()
	stats := map[string]interface{}{
		"statistics":   collector.Snapshot(),
		"summary":      collector.GetSummary(),
		"errorSummary": collector.GetErrorSummary(),
	}
	if cached, ok := s.pipeline.Extractor().(extractor.CachedExtractor); ok {
		stats["cache"] = cached.GetCacheStats()
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    stats,
	})
}

// readUpload pulls the "image" part out of a multipart request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())
	if err := r.ParseMultipartForm(s.maxBody()); err != nil {
		s.writeError(w, "Invalid multipart upload", http.StatusBadRequest)
		return nil, "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, "Image file is required", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, "Failed to read uploaded image", http.StatusBadRequest)
		return nil, "", false
	}
	mimeType := header.Header.Get("Content-Type")
	if !s.checkMimeType(w, mimeType) {
		return nil, "", false
	}
	return data, mimeType, true
}

// writeStageError maps pipeline failures onto HTTP statuses.
func (s *Server) writeStageError(w http.ResponseWriter, err error) {
	var (
		decodeErr *compressor.DecodeError
		parseErr  *extractor.ParseError
		stageErr  *pipeline.StageError
	)

	switch {
	case errors.Is(err, compressor.ErrUnsupportedFormat):
		mimeType := ""
		if errors.As(err, &decodeErr) {
			mimeType = decodeErr.MimeType
		}
		s.writeError(w, unsupportedMessage(mimeType), http.StatusUnsupportedMediaType)
	case errors.As(err, &decodeErr):
		s.writeError(w, "Image could not be decoded: "+decodeErr.Err.Error(), http.StatusBadRequest)
	case errors.Is(err, compressor.ErrSizeCeilingExceeded), errors.Is(err, compressor.ErrTransportLimit):
		s.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.As(err, &parseErr):
		s.writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to parse nutrition data from label",
			"rawText": parseErr.RawText,
		})
	case errors.As(err, &stageErr) && stageErr.Stage == pipeline.StageExtract:
		s.writeError(w, "Failed to process image: "+stageErr.Err.Error(), http.StatusBadGateway)
	default:
		s.log.WithFields(logrus.Fields{"error": err}).Error("Unhandled request error")
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// checkMimeType rejects declared types the compressor cannot re-encode.
// Empty and generic types are sniffed later from the bytes.
func (s *Server) checkMimeType(w http.ResponseWriter, mimeType string) bool {
	normalized := compressor.NormalizeMimeType(mimeType)
	if normalized == "" || normalized == "application/octet-stream" || compressor.SupportedMimeType(normalized) {
		return true
	}
	s.writeError(w, unsupportedMessage(normalized), http.StatusUnsupportedMediaType)
	return false
}

func unsupportedMessage(mimeType string) string {
	if mimeType == "" {
		mimeType = "unknown"
	}
	return fmt.Sprintf("Unsupported image format %s. Please upload a JPEG, PNG, GIF, TIFF or BMP image.", mimeType)
}

func (s *Server) maxBody() int64 {
	if s.cfg.Server.MaxUploadBytes > 0 {
		return s.cfg.Server.MaxUploadBytes
	}
	return 10 << 20
}

// decodeBase64Image accepts raw base64 or a data URL.
func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
