package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/attempt"
	"github.com/motivlab/platform-backend/internal/auth"
)

type quizAttemptPublic struct {
	QuizID         string `json:"quiz_id"`
	Status         string `json:"status"`
	TotalQuestions int    `json:"total_questions"`
	AnsweredCount  int    `json:"answered_count"`
}

type quizQuestionPayload struct {
	ID       string           `json:"id"`
	Stem     string           `json:"stem"`
	Subtitle string           `json:"subtitle,omitempty"`
	Choices  []attempt.Choice `json:"choices"`
}

type quizStateResponse struct {
	Attempt         quizAttemptPublic    `json:"attempt"`
	CurrentQuestion *quizQuestionPayload `json:"current_question"`
}

func quizState(quizID string, view attempt.StateView) quizStateResponse {
	out := quizStateResponse{
		Attempt: quizAttemptPublic{
			QuizID:         quizID,
			Status:         string(view.Status),
			TotalQuestions: view.TotalItems,
			AnsweredCount:  view.AnsweredCount,
		},
	}
	if view.CurrentItem != nil {
		out.CurrentQuestion = &quizQuestionPayload{
			ID:       view.CurrentItem.ID,
			Stem:     view.CurrentItem.Prompt,
			Subtitle: view.CurrentItem.Subtitle,
			Choices:  view.CurrentItem.Choices,
		}
	}
	return out
}

// GET /quiz/{quizID}/state
// Creates the attempt on first call and records the revealed question as
// shown before responding, so two consecutive fetches return the same state.
func QuizStateHandler(eng *attempt.Engine, insts Instruments, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		view, err := eng.State(r.Context(), insts.Quiz(quizID), id.ID, id.Email, true)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, quizState(quizID, view))
	}
}

// POST /quiz/{quizID}/answer  {question_id, choice_id}
func QuizAnswerHandler(eng *attempt.Engine, insts Instruments, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		var req struct {
			QuestionID string `json:"question_id" validate:"required"`
			ChoiceID   string `json:"choice_id" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		value, _ := json.Marshal(req.ChoiceID)

		view, err := eng.SubmitAnswer(r.Context(), insts.Quiz(quizID), id.ID, req.QuestionID, value)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, quizState(quizID, view))
	}
}
