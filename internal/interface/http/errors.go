package httpservice

import (
	"encoding/json"
	"errors"
	"net/http"

	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	log "github.com/sirupsen/logrus"
)

var somethingWentWrong = arkerrors.INTERNAL_ERROR.New("something went wrong")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError converts err into a typed error and writes it with the HTTP
// status matching its gRPC code. Untyped errors are the client's fault.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var structuredErr arkerrors.Error
	if !errors.As(err, &structuredErr) {
		structuredErr = arkerrors.INVALID_ARGUMENT.Wrap(err)
	}
	if structuredErr.Code() == arkerrors.INTERNAL_ERROR.Code {
		structuredErr.Log().WithContext(r.Context()).
			WithField("path", r.URL.Path).
			Error(structuredErr.Error())
	}

	writeJSON(w, runtime.HTTPStatusFromCode(structuredErr.GrpcCode()), ErrorResponse{
		Code:     structuredErr.Code(),
		Name:     structuredErr.CodeName(),
		Message:  structuredErr.Error(),
		Metadata: structuredErr.Metadata(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}
