package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "fail", Fail.String())
	assert.Equal(t, "code_sign_verification_failed", CodeSignVerificationFailed.String())
	assert.Equal(t, "status(-99)", Status(-99).String())
}

func TestSucceeded(t *testing.T) {
	assert.True(t, OK.Succeeded())
	for s := Fail; s >= Max; s-- {
		assert.False(t, s.Succeeded(), s.String())
	}
}
