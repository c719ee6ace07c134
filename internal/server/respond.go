package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/validation"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{Success: true, Data: data, Message: message})
}

// writeError maps err's kind to a status code. data, when given, travels
// alongside the error so callers can inspect what blocked the request.
func writeError(w http.ResponseWriter, err error, data ...any) {
	resp := Response{Success: false, Error: err.Error()}
	if len(data) > 0 {
		resp.Data = data[0]
	}
	writeJSON(w, apperr.HTTPStatus(apperr.KindOf(err)), resp)
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	if err := decodeBody(w, r, op, v); err != nil {
		return err
	}
	return validation.Struct(op, v)
}

// decodeBody reads a JSON body into v. Validation is left to the callee.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation(op, "request body is required")
		}
		return apperr.Validation(op, "invalid request body: "+err.Error())
	}
	return nil
}
