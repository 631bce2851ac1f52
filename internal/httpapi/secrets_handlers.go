package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/edwin001-tech/misused-senders/internal/secrets"
)

type SecretsHandler struct{}

type setSecretReq struct {
	Value string `json:"value"`
}

func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid json")
		return
	}
	if err := secrets.Set(r.PathValue("name"), req.Value); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeSecretRejected, "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := secrets.Delete(r.PathValue("name")); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeSecretRejected, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
