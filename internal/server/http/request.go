package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/research-assistant-service/internal/domain"
)

type promptRequest struct {
	Prompt string `json:"prompt" validate:"required,max=10000"`
}

type feedbackRequest struct {
	Prompt       string            `json:"prompt" validate:"required,max=10000"`
	UserFeedback []domain.Feedback `json:"userFeedback" validate:"max=50"`
}

type confirmationRequest struct {
	Prompt       string            `json:"prompt" validate:"required,max=10000"`
	CurrentStage string            `json:"currentStage" validate:"required"`
	UserFeedback []domain.Feedback `json:"userFeedback" validate:"max=50"`
}

type searchPapersRequest struct {
	Queries []string `json:"queries"`
}

type validatePapersRequest struct {
	Prompt string         `json:"prompt" validate:"required,max=10000"`
	Papers []domain.Paper `json:"papers" validate:"max=100"`
}

type reportRequest struct {
	Prompt         string            `json:"prompt" validate:"required,max=10000"`
	UserFeedback   []domain.Feedback `json:"userFeedback" validate:"max=50"`
	Strategies     []string          `json:"strategies" validate:"max=20,dive,max=20000"`
	SelectedPapers []domain.Paper    `json:"selectedPapers" validate:"max=100"`
}

type manualSourceRequest struct {
	Title    string `json:"title" validate:"required,max=1000"`
	Authors  string `json:"authors" validate:"max=20000"`
	Year     *int   `json:"year" validate:"omitempty,gte=0,lte=9999"`
	DOI      string `json:"doi" validate:"max=1000"`
	URL      string `json:"url" validate:"omitempty,url,max=20000"`
	Abstract string `json:"abstract" validate:"max=20000"`
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a size-limited JSON body into dst and validates it.
// On failure it writes the error response and returns false.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
		}
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first field error without echoing input.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
