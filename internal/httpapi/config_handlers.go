package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

const maxConfigBody = 1 << 20

type ConfigHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	WriteJSON(w, http.StatusOK, cur)
}

// Validate checks a posted config (JSON, or YAML for any other content
// type) laid over the defaults. It never changes the running config.
func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody+1))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxConfigBody {
		WriteError(w, r, http.StatusRequestEntityTooLarge, CodeBadRequest, "config too large")
		return
	}

	cfg := config.Default()
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		err = json.Unmarshal(body, &cfg)
	} else {
		err = yaml.Unmarshal(body, &cfg)
	}
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidConfig, "decode config: "+err.Error())
		return
	}

	_, vr := config.NormalizeAndValidate(cfg)
	WriteJSON(w, http.StatusOK, vr)
}
