package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

const qrSize = 256

// NewRouter mounts the websocket endpoint and the auxiliary REST surface.
func NewRouter(service *app.GameService, opts Options, logger zerolog.Logger) http.Handler {
	ws := NewWSHandler(service, opts, logger)
	api := &restHandler{service: service, publicURL: strings.TrimRight(opts.PublicURL, "/"), log: logger}

	router := httprouter.New()
	router.GET("/ws", ws.ServeWS)
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_, _ = w.Write([]byte("ok"))
	})
	router.GET("/api/room/:code", api.roomInfo)
	router.GET("/api/room/:code/qr.png", api.joinQR)
	router.GET("/api/session/:code/export.csv", api.exportCSV)
	return router
}

type restHandler struct {
	service   *app.GameService
	publicURL string
	log       zerolog.Logger
}

func (h *restHandler) roomInfo(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	info, err := h.service.RoomInfo(normalizeCode(ps.ByName("code")))
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *restHandler) exportCSV(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := normalizeCode(ps.ByName("code"))
	var buf bytes.Buffer
	if err := h.service.ExportCSV(code, &buf); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("code", code).Msg("export csv")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+code+`.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// joinQR renders the join link for a room as a PNG.
func (h *restHandler) joinQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := normalizeCode(ps.ByName("code"))
	if !h.service.Exists(code) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(joinLink(h.publicURL, code), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("encode qr")
		http.Error(w, "qr failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func joinLink(base, code string) string {
	return base + "/?code=" + url.QueryEscape(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
