package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/diwise/space-monitor/internal/pkg/application/facility"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

var errBadRequest = errors.New("bad request")

type message struct {
	Message string `json:"message"`
}

type registered struct {
	Message  string `json:"message"`
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %s", errBadRequest, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(err)
	}

	if err := validate.Struct(v); err != nil {
		return badRequest(err)
	}

	return nil
}

func urlParamID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		return 0, badRequest(fmt.Errorf("invalid id %q", chi.URLParam(r, "id")))
	}
	return uint(id), nil
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, facility.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, facility.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, facility.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, facility.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	status := statusCode(err)

	switch status {
	case http.StatusInternalServerError:
		logger.Error().Err(err).Msg(msg)
		http.Error(w, "internal server error", status)
	case http.StatusUnauthorized:
		logger.Info().Err(err).Msg(msg)
		writeJSON(w, status, message{Message: "Invalid credentials"})
	default:
		logger.Debug().Err(err).Msg(msg)
		writeJSON(w, status, message{Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
