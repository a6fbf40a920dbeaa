package httpservice

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError converts structured errors into their HTTP status and JSON body.
// Anything else is reported as INTERNAL_ERROR without leaking the cause.
func writeError(w http.ResponseWriter, err error) {
	var structuredErr vaulterrors.Error
	if !errors.As(err, &structuredErr) {
		log.WithError(err).Error("unexpected error")
		structuredErr = vaulterrors.INTERNAL_ERROR.New("something went wrong")
	}
	structuredErr.Log().Debug(structuredErr.Error())

	writeJSON(w, structuredErr.HTTPStatus(), errorResponse{
		Code:     structuredErr.Code(),
		Name:     structuredErr.CodeName(),
		Message:  structuredErr.Error(),
		Metadata: structuredErr.Metadata(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:errcheck
	json.NewEncoder(w).Encode(body)
}

func panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorf("recovered from panic: %v", rec)
				log.Errorf("stack trace: %v", string(debug.Stack()))
				writeError(w, vaulterrors.INTERNAL_ERROR.New("something went wrong"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("http request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
