// Package httpapi exposes the emoji codec over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/haytac/neighbourhood-emoji/internal/emojicodec"
	"github.com/haytac/neighbourhood-emoji/internal/formatter"
	"github.com/haytac/neighbourhood-emoji/internal/logging"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
)

const (
	maxBodyBytes = 1 << 20
	textField    = "text"
)

// NewRouter returns the API router.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})

	r.Route("/api/v1/emoji", func(r chi.Router) {
		r.Post("/decode", handle("decode", decode))
		r.Post("/contains", handle("contains", func(req map[string]any) (map[string]any, error) {
			return map[string]any{"contains": emojicodec.ContainsEmojis(req[textField])}, nil
		}))
		r.Post("/extract", handle("extract", func(req map[string]any) (map[string]any, error) {
			return map[string]any{"codes": emojicodec.ExtractEmojiCodes(req[textField])}, nil
		}))
		r.Post("/count", handle("count", func(req map[string]any) (map[string]any, error) {
			return map[string]any{"count": emojicodec.CountEmojis(req[textField])}, nil
		}))
		r.Post("/analyze", handle("analyze", analyze))
		r.Post("/encode", handle("encode", encode))
		r.Post("/render", handle("render", render))
		r.Get("/glyphs/{code}", glyph)
	})
	return r
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func handle(endpoint string, fn func(req map[string]any) (map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req == nil {
			if err == nil {
				err = errors.New("request body must be a JSON object")
			}
			writeError(w, endpoint, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
			return
		}

		resp, err := fn(req)
		if err != nil {
			status := http.StatusInternalServerError
			var bad *badRequestError
			if errors.As(err, &bad) {
				status = http.StatusBadRequest
			}
			writeError(w, endpoint, status, err)
			return
		}
		writeJSON(w, endpoint, http.StatusOK, resp)
	}
}

func decode(req map[string]any) (map[string]any, error) {
	resp := map[string]any{}
	if v, ok := req[textField]; ok {
		if s, isString := v.(string); isString {
			resp[textField] = emojicodec.DecodeFunc(s, metrics.ObserveDecoded)
		} else {
			resp[textField] = emojicodec.EmojiToPlainText(v)
		}
	}
	return resp, nil
}

func analyze(req map[string]any) (map[string]any, error) {
	v := req[textField]
	resp, _ := decode(req)
	resp["contains"] = emojicodec.ContainsEmojis(v)
	resp["codes"] = emojicodec.ExtractEmojiCodes(v)
	resp["count"] = emojicodec.CountEmojis(v)
	return resp, nil
}

func stringField(req map[string]any) (string, error) {
	s, ok := req[textField].(string)
	if !ok {
		return "", &badRequestError{msg: `"text" must be a string`}
	}
	return s, nil
}

func encode(req map[string]any) (map[string]any, error) {
	s, err := stringField(req)
	if err != nil {
		return nil, err
	}
	return map[string]any{textField: emojicodec.EncodeShortcodes(emojicodec.Encode(s))}, nil
}

func render(req map[string]any) (map[string]any, error) {
	s, err := stringField(req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"html": formatter.RenderHTML(s)}, nil
}

func glyph(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	writeJSON(w, "glyph", http.StatusOK, map[string]any{
		"code":  code,
		"glyph": emojicodec.Glyph(code),
		"known": emojicodec.Known(code),
	})
}

func writeError(w http.ResponseWriter, endpoint string, status int, err error) {
	l := logging.Component("httpapi")
	l.Debug().Err(err).Str("endpoint", endpoint).Int("status", status).Msg("API request rejected")
	writeJSON(w, endpoint, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, endpoint string, status int, body any) {
	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		l := logging.Component("httpapi")
		l.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to write API response")
	}
}

// Serve runs the API server on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	l := logging.Component("httpapi")
	srv := &http.Server{Addr: addr, Handler: NewRouter(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("address", addr).Msg("Starting emoji API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("emoji API server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down emoji API server: %w", err)
		}
		l.Info().Msg("Emoji API server stopped")
		return nil
	}
}
