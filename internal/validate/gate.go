// Package validate is the gate a request must pass before it may advance
// past PENDING. It checks field completeness and business rules per event
// type, and rejects duplicates of in-flight requests. The gate never touches
// TargetTicketIDs.
package validate

import (
	"context"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/store"
)

type Gate struct {
	store store.RequestStore
}

func NewGate(s store.RequestStore) *Gate {
	return &Gate{store: s}
}

// Check runs the field rules and duplicate detection for the request.
// A rule failure yields an invalid result and a nil error; a duplicate
// yields an invalid result plus a DUPLICATE_REQUEST domain error, because
// duplicates are never auto-resolved. A non-nil error with a nil result
// means the store itself failed.
func (g *Gate) Check(ctx context.Context, req *domain.IntegrationRequest) (*domain.ValidationResult, error) {
	errs := fieldErrors(req.Event)
	if len(errs) > 0 {
		return &domain.ValidationResult{Valid: false, Errors: errs}, nil
	}

	existing, err := g.store.FindActiveByNaturalKey(ctx, req.NaturalKey(), req.ID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	// Only an earlier request is the incumbent: the copycat is the duplicate,
	// never the original, so a later copy cannot deadlock both.
	if existing != nil && existing.ID < req.ID {
		dup := domain.NewDuplicateRequestError(req.NaturalKey(), existing.ID)
		return &domain.ValidationResult{Valid: false, Errors: []string{dup.Message}}, dup
	}

	return &domain.ValidationResult{Valid: true}, nil
}

func fieldErrors(ev domain.Event) []string {
	var err error
	switch e := ev.(type) {
	case *domain.CaseEvent:
		// Cases arrive pre-validated from the source system.
		return nil

	case *domain.AccountCreationEvent:
		err = validation.ValidateStruct(e,
			validation.Field(&e.AccountID, validation.Required.Error("account id is required")),
			validation.Field(&e.Name, validation.Required.Error("name is required")),
			validation.Field(&e.AccountType, validation.Required.Error("account type is required")),
			// EmailFormat is a pure syntax check; is.Email would resolve MX
			// records and make the gate network-dependent.
			validation.Field(&e.OwnerEmail, is.EmailFormat.Error("owner email is not a valid address")),
		)

	case *domain.PasswordResetEvent:
		err = validation.ValidateStruct(e,
			validation.Field(&e.TicketID, validation.Required.Error("ticket id is required")),
			validation.Field(&e.Username, validation.Required.Error("username is required")),
			validation.Field(&e.System, validation.Required.Error("target system is required")),
		)

	default:
		return []string{"unrecognized event payload"}
	}

	return flatten(err)
}

// flatten converts ozzo's field→error map into a deterministic slice.
func flatten(err error) []string {
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, fmt.Sprintf("%s: %s", field, fieldErrs[field].Error()))
	}
	return out
}
