package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
)

const maxBodyBytes = 16 << 10

// handleTimezones lists the catalog as display strings, offsets as of now.
func (s *server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	entries := s.catalog.List()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.catalog.Display(e.ID, now))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

type zoneInfo struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Offset       string `json:"offset"`
	Abbreviation string `json:"abbreviation"`
}

func (s *server) handleZones(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	entries := s.catalog.List()
	out := make([]zoneInfo, 0, len(entries))
	for _, e := range entries {
		zi := zoneInfo{ID: e.ID, Label: e.Label}
		if loc, err := time.LoadLocation(e.ID); err == nil {
			abbr, offset := now.In(loc).Zone()
			zi.Offset, zi.Abbreviation = tzconvert.FormatOffset(offset), abbr
		}
		out = append(out, zi)
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

type singleConversion struct {
	ConvertedTime string `json:"converted_time"`
	Abbreviation  string `json:"abbreviation"`
	Offset        string `json:"offset"`
}

// handleConvertPath converts one wall clock between two zones named in the path.
func (s *server) handleConvertPath(w http.ResponseWriter, r *http.Request) {
	from, to := r.PathValue("from"), r.PathValue("to")

	wc, err := tzconvert.ParseDateTime(r.PathValue("datetime"))
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error(), "", "")
		return
	}
	res, err := s.engine.ConvertOne(wc, from, to)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error(), "", "")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, singleConversion{
		ConvertedTime: res.Instant.Format("2006-01-02 03:04 PM"),
		Abbreviation:  res.Abbreviation,
		Offset:        res.Instant.Format("-0700"),
	})
}

type convertRequest struct {
	FromTZ      string   `json:"from_tz" validate:"required"`
	ToTimezones []string `json:"to_timezones" validate:"required,min=1"`
	DatetimeStr string   `json:"datetime_str" validate:"required"`
}

type convertResponse struct {
	Results []tzconvert.Result `json:"results"`
	Error   string             `json:"error,omitempty"`
	Details string             `json:"details,omitempty"`
	Code    string             `json:"code,omitempty"`
}

// handleConvert converts one wall clock into up to five target zones.
func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	fail := func(code, msg, details string) {
		s.logger.Debug("conversion rejected", "request_id", requestID, "code", code, "details", details)
		writeJSON(w, s.logger, http.StatusBadRequest, convertResponse{
			Results: []tzconvert.Result{},
			Error:   msg,
			Details: details,
			Code:    code,
		})
	}

	var req convertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		fail("INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		if onlyRequiredFailures(err) {
			fail("INCOMPLETE_INPUT", "Please fill in all fields", validationSummary(err))
			return
		}
		fail("INVALID_REQUEST", "Invalid request", validationSummary(err))
		return
	}

	wc, err := tzconvert.ParseDateTime(req.DatetimeStr)
	if err == nil {
		var results []tzconvert.Result
		results, err = s.engine.Convert(tzconvert.Request{
			SourceZone:  req.FromTZ,
			TargetZones: req.ToTimezones,
			WallClock:   wc,
		})
		if err == nil {
			s.logger.Debug("converted", "request_id", requestID, "from", req.FromTZ, "targets", len(results))
			writeJSON(w, s.logger, http.StatusOK, convertResponse{Results: results})
			return
		}
	}

	var formatErr *tzconvert.FormatError
	var zoneErr *tzconvert.UnresolvedZoneError
	switch {
	case errors.Is(err, tzconvert.ErrIncompleteInput):
		fail("INCOMPLETE_INPUT", "Please fill in all fields", err.Error())
	case errors.Is(err, tzconvert.ErrTooManyTargets):
		fail("INVALID_REQUEST", "Too many target time zones", err.Error())
	case errors.As(err, &formatErr):
		s.logger.Warn("conversion failed", "request_id", requestID, "input", formatErr.Input, "error", err)
		fail("INVALID_DATETIME", "Error converting time", err.Error())
	case errors.As(err, &zoneErr):
		fail("INVALID_REQUEST", "Unknown source time zone", err.Error())
	default:
		fail("INVALID_REQUEST", "Invalid request", err.Error())
	}
}

type detectResponse struct {
	detect.Result
	Label string `json:"label,omitempty"`
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	res := s.detector.Detect(r.Context(), s.clientIP(r))
	out := detectResponse{Result: res}
	if res.Zone != "" {
		out.Label = s.catalog.LabelFor(res.Zone)
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolver.Resolve(r.Context(), r.URL.Query().Get("q"))
	switch {
	case err == nil:
		writeJSON(w, s.logger, http.StatusOK, res)
	case errors.Is(err, resolve.ErrEmptyQuery):
		writeError(w, s.logger, http.StatusBadRequest, "Query parameter q is required", "", "INVALID_REQUEST")
	case errors.Is(err, resolve.ErrUnresolved):
		s.logger.Debug("unresolved place", "query", r.URL.Query().Get("q"), "error", err)
		writeError(w, s.logger, http.StatusNotFound, "No time zone found for that place", "", "UNRESOLVED")
	default:
		s.logger.Error("resolve failed", "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "Resolve failed", "", "INTERNAL_ERROR")
	}
}

// pairsKey returns the storage key for the calling client, or "" after writing an error.
func (s *server) pairsKey(w http.ResponseWriter, r *http.Request) string {
	client := strings.TrimSpace(r.Header.Get("X-Client-ID"))
	if err := s.validate.Var(client, "required,max=64,printascii"); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "X-Client-ID header is required",
			"Send a stable identifier of at most 64 printable ASCII characters.", "MISSING_CLIENT_ID")
		return ""
	}
	return pairs.DefaultKey + ":" + client
}

func (s *server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	key := s.pairsKey(w, r)
	if key == "" {
		return
	}
	list, err := s.pairs.List(r.Context(), key)
	if err != nil {
		s.logger.Error("listing pairs failed", "key", key, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "Could not load saved pairs", "", "STORAGE_ERROR")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, list)
}

type savePairRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

func (s *server) handleSavePair(w http.ResponseWriter, r *http.Request) {
	key := s.pairsKey(w, r)
	if key == "" {
		return
	}

	var req savePairRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "Invalid request body", err.Error(), "INVALID_REQUEST")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "Both zones are required", validationSummary(err), "INCOMPLETE_INPUT")
		return
	}
	for _, zone := range []string{req.From, req.To} {
		if _, err := tzconvert.Now(zone, s.now()); err != nil {
			writeError(w, s.logger, http.StatusBadRequest, "Unknown time zone", err.Error(), "INVALID_REQUEST")
			return
		}
	}

	p, err := s.pairs.Save(r.Context(), key, req.From, req.To)
	switch {
	case err == nil:
		writeJSON(w, s.logger, http.StatusCreated, p)
	case errors.Is(err, pairs.ErrDuplicatePair):
		writeError(w, s.logger, http.StatusConflict, "Pair already saved", err.Error(), "DUPLICATE_PAIR")
	case errors.Is(err, pairs.ErrPairLimit):
		writeError(w, s.logger, http.StatusConflict, "Saved pair limit reached", err.Error(), "PAIR_LIMIT")
	default:
		s.logger.Error("saving pair failed", "key", key, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "Could not save pair", "", "STORAGE_ERROR")
	}
}

func (s *server) handleDeletePair(w http.ResponseWriter, r *http.Request) {
	key := s.pairsKey(w, r)
	if key == "" {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "Invalid pair id", "", "INVALID_REQUEST")
		return
	}

	err = s.pairs.Remove(r.Context(), key, id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, pairs.ErrPairNotFound):
		writeError(w, s.logger, http.StatusNotFound, "Saved pair not found", "", "NOT_FOUND")
	default:
		s.logger.Error("removing pair failed", "key", key, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "Could not remove pair", "", "STORAGE_ERROR")
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"status": "ok", "zones": s.catalog.Len()})
}
