package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("derivation and matching", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErr)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)
	})

	t.Run("status codes inherit and override", func(t *testing.T) {
		ErrBase := New("base").SetStatusCode(http.StatusConflict)
		assert.Equal(t, http.StatusConflict, ErrBase.StatusCode())

		ErrChild := ErrBase.New("child")
		assert.Equal(t, http.StatusConflict, ErrChild.StatusCode())

		ErrOverride := ErrBase.New("override").SetStatusCode(http.StatusNotFound)
		assert.Equal(t, http.StatusNotFound, ErrOverride.StatusCode())
		assert.ErrorIs(t, ErrOverride, ErrBase)
	})

	t.Run("expanded error rendering", func(t *testing.T) {
		ErrBase := New("base").SetExpandError(true)
		wrapped := ErrBase.Err(errors.New("inner one"), errors.New("inner two"))
		assert.Equal(t, "base: inner one;inner two", wrapped.ErrorAll())
	})
}
