package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/moogar0880/problems"

	"quill/internal/engine"
	"quill/internal/logging"
	"quill/internal/services"
	"quill/internal/workflow"
)

const problemMediaType = "application/problem+json"

func writeProblem(w http.ResponseWriter, problem *problems.Problem) {
	w.Header().Set("Content-Type", problemMediaType)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

func (s *apiServer) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(r.URL.Path).
		WithType("validation_error").
		WithDetail(detail))
}

// writeServiceError maps engine and scheduler errors onto problem documents.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeProblem(w, problems.NewStatusProblem(http.StatusNotFound).
			WithInstance(r.URL.Path).
			WithType("not_found").
			WithDetail("workflow not found"))
	case errors.Is(err, services.ErrValidation):
		s.badRequest(w, r, err.Error())
	case errors.Is(err, workflow.ErrQueueFull), errors.Is(err, workflow.ErrSchedulerStopped):
		writeProblem(w, problems.NewStatusProblem(http.StatusServiceUnavailable).
			WithInstance(r.URL.Path).
			WithType("scheduler_unavailable").
			WithDetail(err.Error()))
	case errors.Is(err, services.ErrExternalService), errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		logging.WarnWithContext(logging.WithContext(r.Context(), s.log()), "generation backend failed", "api_generation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.FailureHint(err)),
			logging.String(logging.FieldImpact, "workflow left unchanged"),
		)
		writeProblem(w, problems.NewStatusProblem(http.StatusBadGateway).
			WithInstance(r.URL.Path).
			WithType("generation_failed").
			WithDetail(err.Error()))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, problems.NewStatusProblem(http.StatusServiceUnavailable).
			WithInstance(r.URL.Path).
			WithType("timeout").
			WithDetail("request was cancelled before it completed"))
	default:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, services.FailureHint(err)),
		)
		writeProblem(w, problems.NewStatusProblem(http.StatusInternalServerError).
			WithInstance(r.URL.Path).
			WithType("internal_error").
			WithError(err))
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeRequest reads an optional JSON body into dst and validates it.
// An empty body leaves dst at its zero value. It writes the 400 response
// itself and reports false when the request is unusable.
func (s *apiServer) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.badRequest(w, r, describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			messages = append(messages, fe.Field()+" is required")
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}
