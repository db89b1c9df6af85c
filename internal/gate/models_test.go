package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonMessageCatalogue(t *testing.T) {
	assert.Equal(t, "Your network address has been blocked from creating accounts.", ReasonIPBanned.Message())
	assert.Equal(t, "Signup is temporarily unavailable. Please try again later.", ReasonSystemError.Message())
}

func TestUnknownReasonGetsGenericMessage(t *testing.T) {
	assert.Equal(t, "This signup could not be completed.", Reason("SOMETHING_NEW").Message())
}
