package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/medminder/internal/history"
	"github.com/nerrad567/medminder/internal/medication"
)

type medicationsResponse struct {
	Medications []medication.State `json:"medications"`
	Count       int                `json:"count"`
}

type inventoryRequest struct {
	Inventory *int `json:"inventory"`
}

// handleListMedications lists every medication, or with ?person=<id> only
// those assigned to that person.
func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	if person := r.URL.Query().Get("person"); person != "" {
		meds, err := s.service.MedicationsFor(person)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, medicationsResponse{Medications: meds, Count: len(meds)})
		return
	}

	meds := s.service.Medications()
	if meds == nil {
		meds = []medication.State{}
	}
	writeJSON(w, http.StatusOK, medicationsResponse{Medications: meds, Count: len(meds)})
}

func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Medication(chi.URLParam(r, "entry"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleRecordDose returns 200 with recorded=false when today's doses are
// already complete; that is not an error.
func (s *Server) handleRecordDose(w http.ResponseWriter, r *http.Request) {
	req := medication.ServiceRequest{
		EntryID:      chi.URLParam(r, "entry"),
		MedicationID: chi.URLParam(r, "id"),
	}
	res, err := s.service.RecordDose(r.Context(), req, medication.SourceAPI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var body inventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req := medication.ServiceRequest{
		EntryID:      chi.URLParam(r, "entry"),
		MedicationID: chi.URLParam(r, "id"),
		Inventory:    body.Inventory,
	}
	st, err := s.service.UpdateInventory(r.Context(), req, medication.SourceAPI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDoseHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "dose history is not enabled")
		return
	}
	entryID, medID := chi.URLParam(r, "entry"), chi.URLParam(r, "id")
	if _, err := s.service.Medication(entryID, medID); err != nil {
		writeServiceError(w, err)
		return
	}

	f := history.Filter{EntryID: entryID, MedicationID: medID}
	q := r.URL.Query()
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}
	if v := q.Get("since"); v != "" {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
	}

	res, err := s.history.ListDoses(r.Context(), f)
	if err != nil {
		s.logger.Error("listing dose history failed", "entry_id", entryID, "medication_id", medID, "error", err)
		writeInternalError(w, "failed to list dose history")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleServiceRecordDose accepts the same payload as the MQTT
// record_dose service, flat or wrapped in "data".
func (s *Server) handleServiceRecordDose(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeServiceBody(w, r)
	if !ok {
		return
	}
	res, err := s.service.RecordDose(r.Context(), req, medication.SourceAPI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleServiceUpdateInventory(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeServiceBody(w, r)
	if !ok {
		return
	}
	st, err := s.service.UpdateInventory(r.Context(), req, medication.SourceAPI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) decodeServiceBody(w http.ResponseWriter, r *http.Request) (medication.ServiceRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return medication.ServiceRequest{}, false
		}
		writeBadRequest(w, "failed to read body")
		return medication.ServiceRequest{}, false
	}
	req, err := medication.DecodeServiceRequest(body)
	if err != nil {
		writeServiceError(w, err)
		return medication.ServiceRequest{}, false
	}
	return req, true
}

// intParam parses an optional integer query parameter; "" is 0.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
