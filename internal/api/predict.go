package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sells-group/booking-risk/internal/export"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/store"
)

const previewRows = 10

type bulkPredictResponse struct {
	Preview      []model.ScoredBooking   `json:"preview"`
	TotalRecords int                     `json:"total_records"`
	Inserted     int                     `json:"inserted"`
	Skipped      int                     `json:"skipped"`
	Replaced     int                     `json:"replaced"`
	BatchID      string                  `json:"batch_id"`
	Report       *model.ValidationReport `json:"report"`
	CSVData      string                  `json:"csv_data"`
}

// handlePredict scores one booking posted as JSON. Nothing is persisted.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&b); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	scored, err := s.deps.Enricher.PredictOne(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

// handleBulkPredict scores an uploaded file, persists it and returns a preview
// together with the full scored CSV.
func (s *Server) handleBulkPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large", RequestID: RequestID(r.Context())})
			return
		}
		badRequest(w, r, "no file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "no file uploaded")
		return
	}
	defer func() { _ = file.Close() }()
	if header.Filename == "" {
		badRequest(w, r, "empty filename")
		return
	}

	dedupe := s.opts.Dedupe
	if v := r.FormValue("dedupe"); v != "" {
		if dedupe, err = store.ParseDedupeMode(v); err != nil {
			writeError(w, r, &model.ValidationError{Reason: err.Error(), Columns: []string{"dedupe"}})
			return
		}
	}

	out, err := s.deps.Processor.ProcessReader(r.Context(), header.Filename, file, pipeline.ProcessOptions{
		Persist: true,
		Dedupe:  dedupe,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	var csvData bytes.Buffer
	if err := export.WriteCSV(&csvData, export.Scored(out.Scored)); err != nil {
		writeError(w, r, err)
		return
	}

	preview := out.Scored
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	writeJSON(w, http.StatusOK, bulkPredictResponse{
		Preview:      preview,
		TotalRecords: len(out.Scored),
		Inserted:     out.Insert.Inserted,
		Skipped:      out.Insert.Skipped,
		Replaced:     out.Insert.Replaced,
		BatchID:      out.BatchID,
		Report:       out.Report,
		CSVData:      csvData.String(),
	})
}
