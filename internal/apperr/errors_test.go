package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = New(KindConflict, "feature already registered")

func TestKindOf_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("register %q: %w", "base", errSentinel)

	assert.True(t, errors.Is(err, errSentinel))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindOf(err)))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(KindPersistence, "op", nil))

	cause := errors.New("connection refused")
	err := Wrap(KindPersistence, "registry.get", cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, KindPersistence))
	assert.Equal(t, "registry.get: connection refused", err.Error())
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindGeneration, http.StatusInternalServerError},
		{KindPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindValidation, Op: "codegen.component", Msg: "name is required"}
	assert.Equal(t, "codegen.component: name is required", err.Error())
}
