package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/auth"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

type instrumentView struct {
	Tag   string `json:"tag"`
	Route string `json:"route"`
}

// GetClassHandler resolves a join code to the class and its assigned
// instruments, the entry point of the student flow.
func GetClassHandler(st *store.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		class, err := st.GetClassByCode(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]instrumentView, 0, len(class.Instruments))
		for _, tag := range class.Instruments {
			if instrument, ok := assessment.ByTag(tag); ok {
				views = append(views, instrumentView{Tag: tag, Route: instrument.Route()})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"class":       map[string]any{"id": class.ID, "name": class.Name},
			"instruments": views,
		})
	}
}

// RegisterHandler creates the student, issues the single live session token
// and hands back the bearer credential plus the first pending route.
func RegisterHandler(st *store.SQLStore, guard *auth.SessionGuard, tokens *auth.Tokens, seq *assessment.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClassCode string `json:"class_code"`
			Name      string `json:"name"`
			StudentNo string `json:"student_no"`
			Group     string `json:"group"`
			Program   string `json:"program"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad json")
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Program) == "" {
			writeErrorMsg(w, http.StatusBadRequest, "nombre y carrera son obligatorios")
			return
		}

		class, err := st.GetClassByCode(r.Context(), req.ClassCode)
		if err != nil {
			writeError(w, err)
			return
		}
		student, err := st.CreateStudent(r.Context(), store.Student{
			Name:      req.Name,
			StudentNo: req.StudentNo,
			Group:     req.Group,
			Program:   req.Program,
			ClassID:   class.ID,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		sessionToken, err := guard.Issue(r.Context(), student.ID, r.UserAgent())
		if err != nil {
			writeError(w, err)
			return
		}
		bearerToken, err := tokens.IssueStudent(student.ID, sessionToken)
		if err != nil {
			writeError(w, err)
			return
		}
		next, err := seq.NextRoute(r.Context(), student.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"student_id":   student.ID,
			"access_token": bearerToken,
			"next":         next,
			"done":         next == "",
		})
	}
}

// MeHandler returns the authenticated student's profile.
func MeHandler(st *store.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := auth.StudentFromContext(r.Context())
		if !ok {
			writeErrorMsg(w, http.StatusUnauthorized, "missing student")
			return
		}
		student, err := st.GetStudent(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, student)
	}
}

// NextHandler re-queries the sequencer. An empty route means the student is
// finished and the client should drop its credential and show the terminal
// page.
func NextHandler(seq *assessment.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := auth.StudentFromContext(r.Context())
		if !ok {
			writeErrorMsg(w, http.StatusUnauthorized, "missing student")
			return
		}
		next, err := seq.NextRoute(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"next": next, "done": next == ""})
	}
}

// SubmitHandler scores one instrument submission and persists the outcome.
// The health outcome is sealed in the vault before it touches storage; the
// screening battery lands as four sub-results in one transaction.
func SubmitHandler(st *store.SQLStore, v *vault.Vault, seq *assessment.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := auth.StudentFromContext(r.Context())
		if !ok {
			writeErrorMsg(w, http.StatusUnauthorized, "missing student")
			return
		}
		instrument, ok := assessment.ByRoute(chi.URLParam(r, "route"))
		if !ok {
			writeErrorMsg(w, http.StatusNotFound, "cuestionario desconocido")
			return
		}
		var answers map[string]string
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad json")
			return
		}

		outcome, err := scoreAndPersist(r, st, v, instrument, studentID, answers)
		if err != nil {
			writeError(w, err)
			return
		}
		next, err := seq.NextRoute(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"outcome": outcome,
			"next":    next,
			"done":    next == "",
		})
	}
}

func scoreAndPersist(r *http.Request, st *store.SQLStore, v *vault.Vault, instrument assessment.Instrument, studentID int64, answers map[string]string) (string, error) {
	ctx := r.Context()
	switch instrument {
	case assessment.InstrumentSelfEsteem:
		band, err := assessment.ScoreSelfEsteem(answers)
		if err != nil {
			return "", err
		}
		_, err = st.AddResult(ctx, studentID, instrument.Tag(), band)
		return band, err

	case assessment.InstrumentLearningStyles:
		band, err := assessment.ScoreLearningStyles(answers)
		if err != nil {
			return "", err
		}
		_, err = st.AddResult(ctx, studentID, instrument.Tag(), band)
		return band, err

	case assessment.InstrumentSkills:
		band := assessment.ScoreSkills(answers)
		_, err := st.AddResult(ctx, studentID, instrument.Tag(), band)
		return band, err

	case assessment.InstrumentHealth:
		band, retained := assessment.ScoreHealth(answers)
		sealed, err := v.Seal(band, retained)
		if err != nil {
			return "", err
		}
		_, err = st.AddResult(ctx, studentID, instrument.Tag(), sealed)
		return band, err

	case assessment.InstrumentScreening:
		res, err := assessment.ScoreScreening(answers)
		if err != nil {
			return "", err
		}
		entries := make([]store.ResultEntry, 0, 4)
		for _, e := range res.Entries() {
			entries = append(entries, store.ResultEntry{Instrument: e[0], Outcome: e[1]})
		}
		if err := st.AddResults(ctx, studentID, entries); err != nil {
			return "", err
		}
		return res.Composite(), nil
	}
	return "", &assessment.ValidationError{Msg: "cuestionario desconocido"}
}
