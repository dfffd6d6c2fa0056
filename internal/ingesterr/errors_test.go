package ingesterr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"fetch", &FetchError{Source: "stocks", EntityKey: "AAPL", Err: errors.New("boom")}, KindFetch},
		{"wrapped validation", fmt.Errorf("load: %w", &ValidationError{Invariant: "high_gte_low", Row: 2}), KindValidation},
		{"upsert", &UpsertError{Table: "raw_stock_prices", Attempted: 5, Err: errors.New("locked")}, KindUpsert},
		{"unknown entity", &UnknownEntityError{Source: "sec", EntityKey: "ZZZZ", Reason: "no CIK"}, KindUnknownEntity},
		{"fetch timeout", &FetchError{Source: "news", Err: context.DeadlineExceeded}, KindTimeout},
		{"canceled upsert", &UpsertError{Table: "raw_news", Err: context.Canceled}, KindCanceled},
		{"plain", errors.New("x"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Invariant: "merge_key_unique", Row: -1, Detail: "duplicate key"}
	assert.Equal(t, "validation merge_key_unique failed: duplicate key", err.Error())

	err = &ValidationError{Invariant: "high_gte_low", Row: 3, Detail: "high 1 < low 2"}
	assert.Contains(t, err.Error(), "row 3")
}
