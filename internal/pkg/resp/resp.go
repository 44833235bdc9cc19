/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

It defines a unified JSON response structure, including a business code, message, and optional data,
and offers convenient wrappers for both success and error responses of the local bridge.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned to bridge clients.
type JSONResponse struct {
	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the Content-Type and sends the JSON payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	res := JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, http.StatusOK, res)
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
		Data:    nil,
	}
	RespondJSON(w, r, statusFor(customErr), res)
}

// RespondErr sends err as a custom error response. Errors outside the errs taxonomy become ErrUnknown.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	customErr, ok := errs.As(err)
	if !ok {
		logx.Error(err, "Unclassified error reached the bridge", "path", r.URL.Path)
		customErr = errs.NewError(errs.ErrUnknown, err)
	}
	RespondError(w, r, customErr)
}

// statusFor picks the bridge status for customErr. Failures that came from the backend
// carry the upstream status, which must not leak as the bridge's own status.
func statusFor(customErr *errs.CustomError) int {
	switch customErr.Kind() {
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindNetwork, errs.KindConnection:
		return http.StatusBadGateway
	}

	if customErr.Status >= 400 && customErr.Status < 600 {
		return customErr.Status
	}
	return http.StatusInternalServerError
}
