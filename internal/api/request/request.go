// Package request defines the JSON bodies accepted by the reranker API and
// validates them before they reach the ranking core.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/errors"
)

// Scoring modes. ModeBatch scores text relevance with BM25 over the
// candidate batch; ModeIndependent scores each candidate on its own with
// the term-overlap fallback.
const (
	ModeBatch       = "batch"
	ModeIndependent = "independent"
)

const maxBodyBytes = 4 << 20

// Rerank is the body of POST /api/v1/rerank. Exactly one of CandidateIDs
// (restrict the catalog to these ids) or Candidates (score an inline batch)
// is set. A nil TopK returns every candidate.
type Rerank struct {
	Query        string             `json:"query" validate:"max=1000"`
	CandidateIDs []string           `json:"candidate_ids" validate:"omitempty,min=1,dive,required,max=100"`
	Candidates   []catalog.Product  `json:"candidates" validate:"omitempty,min=1,dive"`
	Weights      map[string]float64 `json:"weights" validate:"omitempty,dive,keys,oneof=text_match price rating popularity,endkeys,gte=0"`
	TopK         *int               `json:"top_k" validate:"omitempty,gte=0"`
	Mode         string             `json:"mode" validate:"omitempty,oneof=batch independent"`
}

// Search is the body of POST /api/v1/search. A nil TopK uses the host
// default.
type Search struct {
	Query   string             `json:"query" validate:"max=1000"`
	Weights map[string]float64 `json:"weights" validate:"omitempty,dive,keys,oneof=text_match price rating popularity,endkeys,gte=0"`
	TopK    *int               `json:"top_k" validate:"omitempty,gte=0"`
}

// Validator decodes and checks request bodies. It is safe for concurrent
// use.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateRerankSource, Rerank{})
	return &Validator{validate: v}
}

// validateRerankSource requires exactly one candidate source.
func validateRerankSource(sl validator.StructLevel) {
	req := sl.Current().Interface().(Rerank)
	switch {
	case len(req.CandidateIDs) == 0 && len(req.Candidates) == 0:
		sl.ReportError(req.CandidateIDs, "candidate_ids", "CandidateIDs", "required_without", "candidates")
	case len(req.CandidateIDs) > 0 && len(req.Candidates) > 0:
		sl.ReportError(req.CandidateIDs, "candidate_ids", "CandidateIDs", "excluded_with", "candidates")
	}
}

// Decode reads a JSON body into dst and validates it. Failures are
// returned as ErrInvalidInput app errors.
func (v *Validator) Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body is required")
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed JSON body: %v", err)
	}
	return v.Struct(dst)
}

// Struct validates an already decoded request.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "excluded_with":
		return "candidate_ids and candidates are mutually exclusive"
	case "oneof":
		if strings.HasPrefix(field, "weights[") {
			return fmt.Sprintf("unknown feature %q in %s", fe.Value(), field)
		}
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds maximum %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
