package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"client", BadRequest("id", "is required"), http.StatusBadRequest},
		{"not found", NotFound("guide", "abc"), http.StatusNotFound},
		{"upstream", Upstream("upload failed", errors.New("boom")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("guide", "x")), http.StatusNotFound},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
		{"unavailable", Unavailable("tts disabled"), http.StatusNotImplemented},
		{"rate", TooManyRequests("slow down"), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("provider unreachable")
	err := Upstream("upload failed", cause)
	assert.Equal(t, "upload failed: provider unreachable", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "id: is required", BadRequest("id", "is required").Error())
}
