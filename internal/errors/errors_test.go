package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "Error: boom", Format(stderrors.New("boom")))
}

func TestFormatf(t *testing.T) {
	assert.Equal(t, "Error: 3 of 5 failed", Formatf("%d of %d failed", 3, 5))
}
