package reader

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/auth"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// bookResponse is what the UI needs before opening a session.
type bookResponse struct {
	Title         string           `json:"title"`
	TotalPages    int              `json:"total_pages"`
	Chapters      []config.Chapter `json:"chapters"`
	LoginRequired bool             `json:"login_required"`
	SearchEnabled bool             `json:"search_enabled"`
	AIEnabled     bool             `json:"ai_enabled"`
}

type thumbResponse struct {
	Page int    `json:"page"`
	Ref  string `json:"ref"`
}

type askRequest struct {
	Action string `json:"action"`
	Page   int    `json:"page"`
}

type translateRequest struct {
	Text string `json:"text"`
}

type loginRequest struct {
	StudentID string `json:"student_id"`
}

func (rd *Reader) handleBook(w http.ResponseWriter, r *http.Request) {
	chapters := rd.cfg.Book.Chapters
	if chapters == nil {
		chapters = []config.Chapter{}
	}
	writeJSON(w, http.StatusOK, bookResponse{
		Title:         rd.cfg.Book.Title,
		TotalPages:    rd.cfg.Book.TotalPages,
		Chapters:      chapters,
		LoginRequired: rd.auth.Required(),
		SearchEnabled: rd.search != nil,
		AIEnabled:     rd.helper != nil,
	})
}

func (rd *Reader) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	a := pages.NewAssets(rd.cfg.Book)
	out := make([]thumbResponse, a.Total)
	for i := range out {
		out[i] = thumbResponse{Page: i + 1, Ref: a.ThumbRef(i + 1)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (rd *Reader) handleSearch(w http.ResponseWriter, r *http.Request) {
	if rd.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search is not available"})
		return
	}
	q := r.URL.Query().Get("q")
	var results []search.Result
	if r.URL.Query().Get("mode") == "semantic" {
		var err error
		results, err = rd.search.Semantic(r.Context(), q, search.MaxResults)
		if errors.Is(err, search.ErrNoIndex) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	} else {
		results = rd.search.Search(q)
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (rd *Reader) handlePageText(w http.ResponseWriter, r *http.Request) {
	page, ok := rd.pageParam(w, r)
	if !ok {
		return
	}
	if rd.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no page text loaded"})
		return
	}
	text, found := rd.search.Corpus().Text(page)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no text for page"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "text": text})
}

func (rd *Reader) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	entries, err := rd.persist.Store().List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []annotate.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rd *Reader) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	page, ok := rd.pageParam(w, r)
	if !ok {
		return
	}
	data, err := rd.persist.Export(r.Context(), page)
	if errors.Is(err, annotate.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no annotations for page"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (rd *Reader) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	page, ok := rd.pageParam(w, r)
	if !ok {
		return
	}
	if err := rd.persist.Store().Delete(r.Context(), annotate.Key(page)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rd *Reader) handleAsk(w http.ResponseWriter, r *http.Request) {
	if rd.helper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI helper is not configured"})
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	action, err := aiproxy.ParseAction(req.Action)
	if err != nil || action == aiproxy.ActionTranslateText {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid action " + strconv.Quote(req.Action)})
		return
	}
	if !pages.NewAssets(rd.cfg.Book).Valid(req.Page) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page out of range"})
		return
	}
	reply, err := rd.helper.Ask(r.Context(), action, req.Page)
	if err != nil {
		writeJSON(w, aiStatus(err), map[string]any{"error": err.Error(), "attempts": reply.Attempts})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rd *Reader) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if rd.helper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AI helper is not configured"})
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	reply, err := rd.helper.Translate(r.Context(), req.Text)
	if errors.Is(err, aiproxy.ErrNothingToTranslate) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, aiStatus(err), map[string]any{"error": err.Error(), "attempts": reply.Attempts})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// aiStatus maps AI helper errors to the status returned to the UI.
func aiStatus(err error) int {
	switch {
	case errors.Is(err, aiproxy.ErrNoProxyURL):
		return http.StatusServiceUnavailable
	case errors.Is(err, aiproxy.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (rd *Reader) handleHistory(w http.ResponseWriter, r *http.Request) {
	if rd.history == nil {
		writeJSON(w, http.StatusOK, []aiproxy.Record{})
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	recs, err := rd.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []aiproxy.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (rd *Reader) handleLogin(w http.ResponseWriter, r *http.Request) {
	if rd.auth == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "login is not enabled"})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	sess, err := rd.auth.Login(r.Context(), req.StudentID)
	if errors.Is(err, auth.ErrMalformedID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (rd *Reader) handleLoginStatus(w http.ResponseWriter, r *http.Request) {
	if rd.auth == nil {
		writeJSON(w, http.StatusOK, map[string]any{"required": false, "logged_in": false})
		return
	}
	sess, err := rd.auth.Verify(r.Context(), auth.TokenFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"required":   rd.auth.Required(),
		"logged_in":  err == nil,
		"student_id": sess.StudentID,
	})
}

func (rd *Reader) handleLogout(w http.ResponseWriter, r *http.Request) {
	if rd.auth != nil {
		if err := rd.auth.Logout(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageParam reads and validates the {page} URL parameter, writing a 400
// when it is not a page of the book.
func (rd *Reader) pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || !pages.NewAssets(rd.cfg.Book).Valid(page) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
		return 0, false
	}
	return page, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
