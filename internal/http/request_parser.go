// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetboard/internal/dashboard"
)

// maxBodyBytes bounds filter request bodies. A selection of every key of the
// largest dimension fits comfortably.
const maxBodyBytes = 1 << 20

// ErrBadRequest wraps every request parsing failure.
var ErrBadRequest = errors.New("bad request")

// DecodeSelection reads a selection body: {"keys": [...]} or
// {"range": [lo, hi]}. Shape problems (keys and range together, wrong
// arity) are left to the board so they surface as invalid filters.
func DecodeSelection(w http.ResponseWriter, r *http.Request) (dashboard.Selection, error) {
	var sel dashboard.Selection
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return sel, fmt.Errorf("%w: content type %q is not application/json", ErrBadRequest, ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil {
		if errors.Is(err, io.EOF) {
			return sel, fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return sel, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if dec.More() {
		return sel, fmt.Errorf("%w: trailing data after selection", ErrBadRequest)
	}
	return sel, nil
}

// ParseTableSize reads the size query parameter. Missing means def; values
// outside [1, max] are rejected.
func ParseTableSize(query url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get("size"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q is not a number", ErrBadRequest, v)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("%w: size must be between 1 and %d", ErrBadRequest, max)
	}
	return n, nil
}
