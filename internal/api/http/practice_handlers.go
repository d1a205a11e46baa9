package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/linguaprep/assessment-engine/internal/auth/middleware"
	"github.com/linguaprep/assessment-engine/internal/engine"
	"github.com/linguaprep/assessment-engine/internal/itembank"
)

func NextPracticeQuestionHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.NextPracticeQuestion(r.Context(), auth.SubjectFromContext(r.Context()),
			itembank.Section(chi.URLParam(r, "section")))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func SubmitPracticeAnswerHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID       string `json:"question_id"`
			Answer           string `json:"answer"`
			TimeSpentSeconds int    `json:"time_spent_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := svc.SubmitPracticeAnswer(r.Context(), auth.SubjectFromContext(r.Context()),
			req.QuestionID, req.Answer, req.TimeSpentSeconds)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetProfileHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetProfile(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func CreateItemHandler(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var it itembank.Item
		if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		created, err := svc.CreateItem(r.Context(), it)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
