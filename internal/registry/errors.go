package registry

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

var (
	ErrFeatureNotFound    = apperr.New(apperr.KindNotFound, "feature not found")
	ErrDependencyNotFound = apperr.New(apperr.KindNotFound, "dependency not found")
	ErrDuplicateFeature   = apperr.New(apperr.KindConflict, "feature already registered")
	ErrSelfDependency     = apperr.New(apperr.KindValidation, "feature cannot depend on itself")
	ErrInvalidDependency  = apperr.New(apperr.KindValidation, "invalid dependency type")
	ErrDependencyCycle    = apperr.New(apperr.KindConflict, "required dependency would create a cycle")
	ErrDependencyDisabled = apperr.New(apperr.KindConflict, "required dependency is disabled")
	ErrDisableBlocked     = apperr.New(apperr.KindConflict, "feature has enabled required dependents")
	ErrHasDependents      = apperr.New(apperr.KindConflict, "feature has dependents")
	ErrRevisionConflict   = apperr.New(apperr.KindConflict, "feature was modified concurrently")
)

// DependentsError reports the features that block an operation on FeatureID.
// It unwraps to ErrDisableBlocked or ErrHasDependents.
type DependentsError struct {
	FeatureID  string
	Dependents []string
	Err        error
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.FeatureID, e.Err.Error(), strings.Join(e.Dependents, ", "))
}

func (e *DependentsError) Unwrap() error {
	return e.Err
}

// CycleError carries the path the rejected edge would close.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDependencyCycle.Error(), strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrFeatureNotFound, id)
}

func persistence(op string, err error) error {
	return apperr.Wrap(apperr.KindPersistence, op, err)
}
