package httpapi

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/DoyleJ11/drawing-board/internal/board"
	"github.com/DoyleJ11/drawing-board/internal/export"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 6
	qrSize      = 320
)

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

type boardInfo struct {
	Code         string `json:"code"`
	Users        int    `json:"users"`
	Instructions int    `json:"instructions"`
}

// CreateBoard opens a board under a fresh random code.
func (a *api) CreateBoard(w http.ResponseWriter, r *http.Request) {
	for {
		code, err := GenerateCode()
		if err != nil {
			http.Error(w, "failed to generate code", http.StatusInternalServerError)
			return
		}
		b := a.hub.Create(r.Context(), code)
		if b == nil {
			select {
			case <-r.Context().Done():
				return
			case <-a.hub.Done():
				http.Error(w, "server shutting down", http.StatusServiceUnavailable)
				return
			default:
			}
			a.logger.Debug("collision on code, regenerating", zap.String("board", code))
			continue
		}

		writeJSON(w, http.StatusCreated, boardInfo{Code: b.Code()})
		return
	}
}

func (a *api) ListBoards(w http.ResponseWriter, r *http.Request) {
	codes := a.hub.List(r.Context())
	if codes == nil {
		codes = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Boards []string `json:"boards"`
	}{Boards: codes})
}

func (a *api) GetBoard(w http.ResponseWriter, r *http.Request) {
	v, ok := a.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, boardInfo{
		Code:         v.Code,
		Users:        len(v.Users),
		Instructions: len(v.Instructions),
	})
}

func (a *api) CanvasPNG(w http.ResponseWriter, r *http.Request) {
	res, ok := a.render(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.PNG(&buf, res); err != nil {
		a.logger.Warn("png export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (a *api) CanvasPDF(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	res, ok := a.render(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, res, code); err != nil {
		a.logger.Warn("pdf export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+code+`.pdf"`)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// QR encodes the page URL that opens the board, not the websocket URL.
func (a *api) QR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if a.hub.Get(r.Context(), code) == nil {
		http.Error(w, "board not found", http.StatusNotFound)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + "/?board=" + code

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) view(w http.ResponseWriter, r *http.Request) (board.View, bool) {
	b := a.hub.Get(r.Context(), chi.URLParam(r, "code"))
	if b == nil {
		http.Error(w, "board not found", http.StatusNotFound)
		return board.View{}, false
	}
	v, err := b.State(r.Context())
	if err != nil {
		http.Error(w, "board unavailable", http.StatusServiceUnavailable)
		return board.View{}, false
	}
	return v, true
}

func (a *api) render(w http.ResponseWriter, r *http.Request) (export.Result, bool) {
	v, ok := a.view(w, r)
	if !ok {
		return export.Result{}, false
	}
	res, err := export.Render(v.Settings, v.Instructions)
	if err != nil {
		a.logger.Warn("render failed", zap.String("board", v.Code), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return export.Result{}, false
	}
	a.metrics.FillsReplayed(res.Fills)
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
