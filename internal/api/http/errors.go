package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/auth"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Integrity failures from
// the vault surface as explicit 500s; they are never folded into an empty
// response.
func writeError(w http.ResponseWriter, err error) {
	var verr *assessment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorMsg(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, store.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, "no encontrado")
	case errors.Is(err, store.ErrDuplicate):
		writeErrorMsg(w, http.StatusConflict, "ya registrado")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorMsg(w, http.StatusUnauthorized, "Credenciales incorrectas")
	case errors.Is(err, vault.ErrIntegrity):
		writeErrorMsg(w, http.StatusInternalServerError, "el resultado almacenado no pasó la verificación de integridad")
	default:
		writeErrorMsg(w, http.StatusInternalServerError, "error interno")
	}
}
