package apierror_test

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/veebhq/veeb/internal/apierror"
)

func TestError(t *testing.T) {
	err := apierror.New("some message")

	assert.Equal(t, "some message", err.Error())
	assert.Equal(t, http.StatusInternalServerError, apierror.StatusCode(err))
	assert.Equal(t, "", apierror.Tag(err))
}

func TestErrorWithTagCode(t *testing.T) {
	err := apierror.NewWithTagCode(http.StatusBadRequest, apierror.TagUnknownColumn, "unknown column image_data")

	assert.Equal(t, http.StatusBadRequest, apierror.StatusCode(err))
	assert.Equal(t, apierror.TagUnknownColumn, apierror.Tag(err))
}

func TestForeignError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, http.StatusInternalServerError, apierror.StatusCode(err))
	assert.Equal(t, "", apierror.Tag(err))
}
