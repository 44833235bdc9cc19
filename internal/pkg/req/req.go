/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates the logic for decoding JSON bodies sent to the local bridge, with a body
size cap and the errs codes for each way a body can be malformed.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"xalvion/internal/pkg/errs"
)

// MaxJSONBodySize caps a bridge request body (64 KB).
const MaxJSONBodySize int64 = 64 << 10

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
