package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orienta-lab/orienta/internal/analytics"
	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/auth"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr; strip the port if any
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// AdminLoginHandler checks the admin credential behind the lockout guard.
// Failures are recorded per source IP; a success wipes the counter.
func AdminLoginHandler(admin *auth.AdminAuth, lockout *auth.LockoutGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		locked, err := lockout.IsLocked(r.Context(), ip)
		if err != nil {
			writeError(w, err)
			return
		}
		if locked {
			writeErrorMsg(w, http.StatusTooManyRequests, "Demasiados intentos. Intenta más tarde.")
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad json")
			return
		}
		token, err := admin.Login(req.Username, req.Password)
		if err != nil {
			if recErr := lockout.RecordFailure(r.Context(), ip); recErr != nil {
				writeError(w, recErr)
				return
			}
			writeError(w, err)
			return
		}
		if err := lockout.Clear(r.Context(), ip); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
	}
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// CreateClassHandler registers a class with its ordered instrument
// assignment and a fresh shareable join code.
func CreateClassHandler(st *store.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string   `json:"name"`
			Instruments []string `json:"instruments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad json")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeErrorMsg(w, http.StatusBadRequest, "nombre obligatorio")
			return
		}
		for _, tag := range req.Instruments {
			if _, ok := assessment.ByTag(tag); !ok {
				writeErrorMsg(w, http.StatusBadRequest, "cuestionario desconocido: "+tag)
				return
			}
		}
		class, err := st.CreateClass(r.Context(), req.Name, newJoinCode(), req.Instruments)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, class)
	}
}

func ListClassesHandler(st *store.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classes, err := st.ListClasses(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, classes)
	}
}

// DeleteClassHandler removes a class and cascades to its students, sessions
// and results.
func DeleteClassHandler(st *store.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad id")
			return
		}
		if err := st.DeleteClass(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DashboardHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := agg.Dashboard(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func GroupStatsHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad id")
			return
		}
		g, err := agg.GroupView(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// HealthDetailHandler opens a student's latest sealed health result for
// authorized review. Decryption failures propagate as explicit errors.
func HealthDetailHandler(st *store.SQLStore, v *vault.Vault) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad id")
			return
		}
		student, err := st.GetStudent(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		result, err := st.LatestResult(r.Context(), id, assessment.InstrumentHealth.Tag())
		if err != nil {
			writeError(w, err)
			return
		}
		band, answers, err := v.Open(result.Outcome)
		if err != nil {
			writeError(w, err)
			return
		}
		if answers == nil {
			answers = map[string]string{"Información": "Registro antiguo sin respuestas guardadas"}
		}
		delete(answers, "alumno")
		writeJSON(w, http.StatusOK, map[string]any{
			"student": student.Name,
			"band":    band,
			"answers": answers,
		})
	}
}

type healthHistoryRow struct {
	Class   string `json:"class"`
	Student string `json:"student"`
	Band    string `json:"band"`
}

// HealthHistoryHandler lists every health submission reduced to its band.
func HealthHistoryHandler(st *store.SQLStore, v *vault.Vault) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := st.ListResultRows(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		healthTag := assessment.InstrumentHealth.Tag()
		out := make([]healthHistoryRow, 0)
		for _, row := range rows {
			if row.Instrument != healthTag {
				continue
			}
			band, _, err := v.Open(row.Outcome)
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, healthHistoryRow{Class: row.ClassName, Student: row.StudentName, Band: band})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// RosterHandler lists a class roster with optional substring filters. Health
// outcomes are reduced to their band before leaving the admin surface.
func RosterHandler(st *store.SQLStore, v *vault.Vault) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "bad id")
			return
		}
		q := r.URL.Query()
		rows, err := st.Roster(r.Context(), id, store.RosterFilter{
			Student:    q.Get("student"),
			Program:    q.Get("program"),
			Instrument: q.Get("instrument"),
			Outcome:    q.Get("outcome"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		healthTag := assessment.InstrumentHealth.Tag()
		for i := range rows {
			if rows[i].Instrument != healthTag || rows[i].Outcome == "" {
				continue
			}
			band, _, err := v.Open(rows[i].Outcome)
			if err != nil {
				writeError(w, err)
				return
			}
			rows[i].Outcome = band
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
