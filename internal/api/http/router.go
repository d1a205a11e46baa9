package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/linguaprep/assessment-engine/internal/engine"
	"github.com/linguaprep/assessment-engine/internal/rbac"
)

// Mount wires the protected API surface. Callers apply auth middleware before
// mounting; ownership checks happen in the engine, RBAC gates the operation
// class here.
func Mount(r chi.Router, svc *engine.Service) {
	r.With(rbac.Require("attempt:create")).Post("/exams/official", CreateOfficialExamHandler(svc))
	r.With(rbac.Require("attempt:create")).Post("/exams/micro", CreateMicroLearningHandler(svc))
	r.With(rbac.Require("attempt:create")).Post("/exams/practice", CreateSectionPracticeHandler(svc))

	r.Route("/attempts/{attemptID}", func(ar chi.Router) {
		ar.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/", GetAttemptHandler(svc))
		ar.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/questions", GetExamQuestionsHandler(svc))
		ar.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/result", GetResultHandler(svc))
		ar.With(rbac.Require("attempt:control")).Post("/start", StartExamHandler(svc))
		ar.With(rbac.Require("attempt:control")).Post("/pause", PauseExamHandler(svc))
		ar.With(rbac.Require("attempt:control")).Post("/resume", ResumeExamHandler(svc))
		ar.With(rbac.Require("attempt:control")).Post("/complete", CompleteExamHandler(svc))
		ar.With(rbac.Require("attempt:control")).Post("/abandon", AbandonExamHandler(svc))
		ar.With(rbac.Require("attempt:answer")).Post("/answers", SubmitAnswerHandler(svc))
		ar.With(rbac.Require("attempt:answer")).Post("/activity", ReportActivityHandler(svc))
	})

	r.With(rbac.Require("practice:next")).Get("/practice/{section}/next", NextPracticeQuestionHandler(svc))
	r.With(rbac.Require("practice:answer")).Post("/practice/answers", SubmitPracticeAnswerHandler(svc))
	r.With(rbac.Require("profile:view-own")).Get("/profile", GetProfileHandler(svc))

	r.With(rbac.Require("item:create")).Post("/items", CreateItemHandler(svc))
}
