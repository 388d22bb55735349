package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mojgrad-go/internal/api"
	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/storage"
	"mojgrad-go/internal/store"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func callerId(r *http.Request) string {
	userId, _ := auth.UserIDFromRequest(r)
	return userId
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.cfg.Service.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.cfg.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Service.Categories())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.cfg.Service.Profile(r.Context(), callerId(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var point models.GeoPoint
	if err := decodeJSON(w, r, &point); err != nil {
		writeError(w, r, err)
		return
	}

	update, err := s.cfg.Service.UpdateLocation(r.Context(), callerId(r), point)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (s *Server) handleUserVotes(w http.ResponseWriter, r *http.Request) {
	ids, err := s.cfg.Service.UserVotes(r.Context(), callerId(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"problemIds": ids})
}

func (s *Server) handlePointHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := s.cfg.Service.GetPointHistory(r.Context(), callerId(r), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.PointTransaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProblemFilter{
		Status:     models.ProblemStatus(q.Get("status")),
		Category:   q.Get("category"),
		AuthorName: q.Get("author"),
		Search:     q.Get("search"),
		UserId:     q.Get("userId"),
		Sort:       q.Get("sort"),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.CreatedAfter, err = queryTime(r, "createdAfter"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.CreatedBefore, err = queryTime(r, "createdBefore"); err != nil {
		writeError(w, r, err)
		return
	}

	problems, err := s.cfg.Service.ListProblems(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	writeJSON(w, http.StatusOK, problems)
}

func (s *Server) handleProblemsNear(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat", true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng", true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	radius, err := queryFloat(r, "radius", false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	nearby, err := s.cfg.Service.ProblemsNear(r.Context(), models.GeoPoint{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if nearby == nil {
		nearby = []api.NearbyProblem{}
	}
	writeJSON(w, http.StatusOK, nearby)
}

func (s *Server) handleReportProblem(w http.ResponseWriter, r *http.Request) {
	var req api.ReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	problem, err := s.cfg.Service.ReportProblem(r.Context(), callerId(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, problem)
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	view, err := s.cfg.Service.GetProblem(r.Context(), callerId(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Service.Vote(r.Context(), callerId(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnvote(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Service.Unvote(r.Context(), callerId(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleToggleVote(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Service.ToggleVote(r.Context(), callerId(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	problem, err := s.cfg.Service.ToggleProblemStatus(r.Context(), callerId(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(storage.MaxFileSize + 1<<20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperror.ValidationFailed("file", "Slika ne sme biti veća od 5MB"))
			return
		}
		writeError(w, r, apperror.ValidationFailed("file", "Neispravan zahtev za otpremanje"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperror.ValidationFailed("file", "Fajl je obavezan"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxFileSize+1))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.cfg.Service.UploadImage(r.Context(), callerId(r), header.Filename, r.FormValue("folder"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.cfg.Service.Leaderboard(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	admin, err := s.cfg.Service.IsAdmin(r.Context(), callerId(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !admin {
		writeError(w, r, apperror.Forbidden("Samo administrator može pokrenuti proveru poena"))
		return
	}

	reports, err := s.cfg.Service.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(key, "Vrednost mora biti ceo broj")
	}
	return v, nil
}

func queryFloat(r *http.Request, key string, required bool) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		if required {
			return 0, apperror.ValidationFailed(key, "Parametar je obavezan")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperror.ValidationFailed(key, "Vrednost mora biti broj")
	}
	return v, nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(key, "Datum mora biti u RFC3339 formatu")
	}
	return t, nil
}
