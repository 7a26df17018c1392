// Package models holds the types shared across wavectl's internal packages
// and, unlike everything under internal/, is safe for external tooling to
// import.
package models

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the taxonomy surfaced to history rows and
// logs (spec §7). Consumers use errors.As against the concrete wrapper
// types below, not string matching against Kind.
type Kind string

const (
	KindConfig           Kind = "config_error"
	KindStorage          Kind = "storage_error"
	KindMetricNotAvail   Kind = "metric_not_available"
	KindExpression       Kind = "expression_error"
	KindUnknownComponent Kind = "unknown_component"
	KindUnknownKind      Kind = "unknown_kind"
	KindTransient        Kind = "transient"
	KindPermanent        Kind = "permanent"
)

// ConfigError wraps a malformed-YAML / unknown-kind / invalid-id failure.
// Sync of a definition set rejects at the document boundary on ConfigError
// and never applies a partial set.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(reason string, err error) *ConfigError {
	return &ConfigError{Reason: reason, Err: err}
}

// StorageError wraps any SQL failure. The synchroniser retries on the next
// poll signal; the HTTP surface maps it to a 5xx.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// MetricNotAvailableError means an expression referenced a metric with no
// samples in its window. It is not a failure of the expression itself; the
// containing plan item is simply ineligible this tick.
type MetricNotAvailableError struct {
	MetricID string
}

func (e *MetricNotAvailableError) Error() string {
	return fmt.Sprintf("metric not available: %s", e.MetricID)
}

func NewMetricNotAvailableError(metricID string) *MetricNotAvailableError {
	return &MetricNotAvailableError{MetricID: metricID}
}

// ExpressionError wraps a JS evaluation failure or type mismatch. The item
// is ineligible and the error text is recorded as the execution's
// fail_message.
type ExpressionError struct {
	Source string
	Err    error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression error: %v", e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

func NewExpressionError(source string, err error) *ExpressionError {
	return &ExpressionError{Source: source, Err: err}
}

// UnknownComponentError is returned by the driver registry when a plan
// references a component id absent from the current ScalingComponent set.
type UnknownComponentError struct {
	ComponentID string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component: %s", e.ComponentID)
}

func NewUnknownComponentError(id string) *UnknownComponentError {
	return &UnknownComponentError{ComponentID: id}
}

// UnknownKindError is returned when a component_kind has no registered
// driver.
type UnknownKindError struct {
	ComponentKind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown component kind: %s", e.ComponentKind)
}

func NewUnknownKindError(kind string) *UnknownKindError {
	return &UnknownKindError{ComponentKind: kind}
}

// TransientError wraps a driver-reported throttling/5xx/timeout condition.
// No automatic retry is scheduled; the next matching scheduler tick will
// naturally retry.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient: %s", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransientError(reason string, err error) *TransientError {
	return &TransientError{Reason: reason, Err: err}
}

// PermanentError wraps a driver-reported 4xx/validation condition.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(reason string, err error) *PermanentError {
	return &PermanentError{Reason: reason, Err: err}
}

// KindOf classifies err into the taxonomy above, walking the Unwrap chain.
// Errors that match none of the wrapper types report an empty Kind.
func KindOf(err error) Kind {
	var (
		cfgErr      *ConfigError
		storErr     *StorageError
		metricErr   *MetricNotAvailableError
		exprErr     *ExpressionError
		unkCompErr  *UnknownComponentError
		unkKindErr  *UnknownKindError
		transErr    *TransientError
		permErr     *PermanentError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &storErr):
		return KindStorage
	case errors.As(err, &metricErr):
		return KindMetricNotAvail
	case errors.As(err, &exprErr):
		return KindExpression
	case errors.As(err, &unkCompErr):
		return KindUnknownComponent
	case errors.As(err, &unkKindErr):
		return KindUnknownKind
	case errors.As(err, &transErr):
		return KindTransient
	case errors.As(err, &permErr):
		return KindPermanent
	default:
		return ""
	}
}
