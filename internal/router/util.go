package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/internal/engine"
	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	userRepo "github.com/Yusufzhafir/escrow-orderbook/internal/repository/user"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/user"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// decodeJSON reads and unmarshals the request body into T with sane limits and timeouts.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	r = r.WithContext(ctx)

	const maxBody = int64(1 << 20) // 1 MiB
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req T
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, errors.New("empty body")
		}
		return zero, err
	}

	if dec.More() {
		return zero, errors.New("multiple JSON values in body")
	}

	return req, nil
}

// writeJSON marshals v and writes it with status and proper headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

// writeJSONError writes a simple error response as JSON.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	type errorResp struct {
		Error   string `json:"error"`
		Status  int    `json:"status"`
		Message string `json:"message,omitempty"`
	}
	writeJSON(w, status, errorResp{
		Error:   http.StatusText(status),
		Status:  status,
		Message: err.Error(),
	})
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidSize),
		errors.Is(err, engine.ErrUnsupportedPair),
		errors.Is(err, engine.ErrAmountOverflow),
		errors.Is(err, ledger.ErrUnknownAsset),
		errors.Is(err, user.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, userRepo.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrNotInitialized),
		errors.Is(err, engine.ErrOrderNotFound),
		errors.Is(err, userRepo.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, userRepo.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

// bookKeyFromPath reads {owner}/{base}/{quote} path values.
func bookKeyFromPath(r *http.Request) (model.BookKey, error) {
	owner, err := strconv.ParseInt(r.PathValue("owner"), 10, 64)
	if err != nil {
		return model.BookKey{}, errors.New("owner must be an integer")
	}
	return model.BookKey{
		Owner: model.UserId(owner),
		Base:  r.PathValue("base"),
		Quote: r.PathValue("quote"),
	}, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}
