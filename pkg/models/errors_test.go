package models

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"config", NewConfigError("bad", nil), KindConfig},
		{"storage", NewStorageError("sync", errors.New("boom")), KindStorage},
		{"metric unavailable", NewMetricNotAvailableError("cpu"), KindMetricNotAvail},
		{"expression", NewExpressionError("1+1", errors.New("bad")), KindExpression},
		{"unknown component", NewUnknownComponentError("asg"), KindUnknownComponent},
		{"unknown kind", NewUnknownKindError("widget"), KindUnknownKind},
		{"transient", NewTransientError("throttled", nil), KindTransient},
		{"permanent", NewPermanentError("invalid param", nil), KindPermanent},
		{"plain error", errors.New("plain"), Kind("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewStorageError("sync_metrics", inner)
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}
