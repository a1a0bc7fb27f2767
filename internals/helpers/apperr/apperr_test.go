package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", UploadFailed(errors.New("bucket gone")))

	assert.True(t, errors.Is(err, ErrUploadFailed))
	assert.False(t, errors.Is(err, ErrInsertFailed))
	assert.Equal(t, KindUploadFailed, KindOf(err))
	assert.Equal(t, "failed to upload passport photograph", Message(err))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := InsertFailed(cause)

	assert.ErrorIs(t, err, cause)
}

func TestWrapLeavesTypedErrors(t *testing.T) {
	v := ValidationFailed("amount", "bad amount")
	assert.Same(t, v, Wrap(v))

	w := Wrap(errors.New("boom"))
	assert.Equal(t, KindUnknown, w.Kind)
	assert.Nil(t, Wrap(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ValidationFailed("email", "x"): fiber.StatusUnprocessableEntity,
		AuthRequired():                 fiber.StatusUnauthorized,
		ScriptUnavailable("down"):      fiber.StatusServiceUnavailable,
		PaymentCancelled("closed"):     fiber.StatusConflict,
		PaymentFailed("declined"):      fiber.StatusPaymentRequired,
		errors.New("plain"):            fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
