package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"finwise/internal/export"
	"finwise/internal/importer"
)

const sampleFilename = "sample_transactions.csv"

// handleImport accepts the CSV either as the raw request body or as the
// "file" part of a multipart form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(ctx)

	body, err := importBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.imports.Import(ctx, user, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Outcome: out, Message: out.Message()})
}

func importBody(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New(`missing "file" part`)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
	}
}

func handleImportSample(w http.ResponseWriter, r *http.Request) {
	writeCSV(w, sampleFilename, []byte(importer.SampleCSV))
}

// handleExport buffers the whole file so a storage failure still produces
// a clean error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), userID(r.Context()), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCSV(w, export.Filename(time.Now()), buf.Bytes())
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
