package ipam

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Таксономия ошибок ядра. Validation/NotFound ловятся до записи,
// Conflict может прилететь и от БД (гонка двух аллокаторов) — оба пути
// дают один и тот же тип.

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %v not found", e.Kind, e.ID) }

func notFound(kind string, id any) error { return &NotFoundError{Kind: kind, ID: id} }

// PreconditionError — несовпадение версии при оптимистичном обновлении.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}

// translateStoreError — конфликт уникальности из стора считаем тем же
// Conflict, что и локально обнаруженный дубль; ErrRecordNotFound — NotFound.
func translateStoreError(err error, kind string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflict("%s %v already exists", kind, id)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound(kind, id)
	default:
		return err
	}
}
