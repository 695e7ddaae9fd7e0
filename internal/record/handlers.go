package record

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"receipttracker/internal/pipeline"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func jsonError(w http.ResponseWriter, code int, body any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// handleHealth reports process liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipts); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadReceipt handles receipt upload and processing. Optional form
// fields steer the cascade: "engine" pins a backend, "fallback" re-enables
// the cascade behind a pinned backend, "lang" and "prompt" are passed
// through to the engine.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// Max 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, http.StatusBadRequest, map[string]string{
			"error": "File is too large. Maximum size is 50MB. Please compress or resize your image.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, http.StatusInternalServerError, map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)

	opts := pipeline.Options{
		Engine:        r.FormValue("engine"),
		AllowFallback: r.FormValue("fallback") != "false",
		Language:      r.FormValue("lang"),
		Prompt:        r.FormValue("prompt"),
	}

	receipt, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType, opts)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		var pf *pipeline.PipelineFailure
		if errors.As(err, &pf) {
			// Every backend was tried and none produced text; surface the
			// attempt trail so the caller can see what went wrong where.
			jsonError(w, http.StatusBadGateway, map[string]any{
				"error":     pf.Error(),
				"attempts":  pf.Attempts,
				"cancelled": pf.Cancelled,
			})
			return
		}
		jsonError(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// detectContentType falls back to extension sniffing when the client
// declared nothing more specific than octet-stream. HEIC/HEIF types are
// preserved so conversion can detect them.
func detectContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReceiptFile returns the original document for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetReceiptFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReceipt(id); err != nil {
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// engineInfo is the per-engine entry of the engines listing.
type engineInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Transport  string `json:"transport"`
	Structured bool   `json:"structured"`
	Available  bool   `json:"available"`
	LatencyMS  int64  `json:"latency_ms"`
	Detail     string `json:"detail,omitempty"`
}

// handleListEngines probes every configured backend and reports the
// cascade in priority order
func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	engines := s.engines.Engines()
	results := s.engines.Prober().ProbeAll(r.Context(), engines)

	infos := make([]engineInfo, 0, len(engines))
	for i, e := range engines {
		desc := e.Descriptor()
		infos = append(infos, engineInfo{
			ID:         desc.ID,
			Name:       desc.Name,
			Transport:  string(desc.Transport),
			Structured: desc.Structured,
			Available:  results[i].Available,
			LatencyMS:  results[i].Latency.Milliseconds(),
			Detail:     results[i].Detail,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
