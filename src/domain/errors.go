package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEntityNotFound = errors.New("entity not found")

	ErrUnavailableServer = errors.New("Oops, something unexpected happened. Please try again later.")

	// Uso incorreto do schema: kind de origem ou destino não registrado.
	ErrInvalidRelationKind = errors.New("invalid relation kind")

	// Relação não declarada no kind consultado.
	ErrUnknownRelation = errors.New("unknown relation")

	ErrValidationFailed = errors.New("validation failed")

	// O store rejeitou a transação; o chamador pode repetir a operação inteira.
	ErrWriteConflict = errors.New("write conflict")

	ErrStoreUnavailable = errors.New("graph store unavailable")

	ErrInvalidComparator = errors.New("invalid comparator")
)

// RelationError carries the kind and relation name involved in a schema misuse.
type RelationError struct {
	Kind     string
	Relation string
	cause    error
}

func NewInvalidRelationKindError(kind, relation string) *RelationError {
	return &RelationError{Kind: kind, Relation: relation, cause: ErrInvalidRelationKind}
}

func NewUnknownRelationError(kind, relation string) *RelationError {
	return &RelationError{Kind: kind, Relation: relation, cause: ErrUnknownRelation}
}

func (e *RelationError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("%v: kind %q", e.cause, e.Kind)
	}
	return fmt.Sprintf("%v: %s.%s", e.cause, e.Kind, e.Relation)
}

// Is allows errors.Is(err, ErrUnknownRelation) and errors.Is(err, ErrInvalidRelationKind).
func (e *RelationError) Is(target error) bool {
	return target == e.cause
}

// ValidationError lists the required attributes missing from an attribute set.
type ValidationError struct {
	Kind    string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s requires %s", ErrValidationFailed, e.Kind, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// IsRecoverable reports whether the caller may retry the operation that produced err.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrWriteConflict) ||
		errors.Is(err, ErrStoreUnavailable)
}
