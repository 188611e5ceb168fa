package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "bedshift.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "bedshift.yaml", file)
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		assert.True(t, IsClassified(err))
		assert.True(t, HasCategory(err, CategoryConfig))
		assert.True(t, HasSeverity(err, SeverityFatal))
		assert.False(t, err.CanRetry())
		assert.True(t, err.IsFatal())
	})

	t.Run("Detection through fmt wrapping", func(t *testing.T) {
		base := SchedulingError("denied").Build()
		wrapped := fmt.Errorf("schedule cycle: %w", base)

		assert.True(t, IsClassified(wrapped))
		assert.Equal(t, CategoryScheduling, GetCategory(wrapped))
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})
}

func TestSentinelMatching(t *testing.T) {
	sentinel := CycleError("action does not match the current cycle").Build()

	derived := sentinel.WithContext("cycle_id", "abc")
	assert.ErrorIs(t, derived, sentinel)
	assert.Empty(t, sentinel.Context(), "sentinel context must not be mutated")

	wrapped := sentinel.Wrap(stderrors.New("boom"))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.Contains(t, wrapped.Error(), "boom")

	other := CycleError("different").Build()
	assert.NotErrorIs(t, derived, other)
}

func TestErrorBuilder(t *testing.T) {
	originalErr := stderrors.New("original error")
	err := WrapError(originalErr, CategoryStorage, "save failed").
		Warning().
		Retryable().
		WithContext("key", "progressBedtime").
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, RetryBackoff, err.RetryStrategy())
	assert.True(t, err.CanRetry())
	assert.ErrorIs(t, err, originalErr)
	assert.Equal(t, "[storage:warning] save failed: original error", err.Error())
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{"a": 1, "shared": "left"}
	b := ErrorContext{"b": 2, "shared": "right"}

	merged := a.Merge(b)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
	assert.Equal(t, "right", merged["shared"])

	var empty ErrorContext
	assert.Equal(t, b, empty.Merge(b))
}
