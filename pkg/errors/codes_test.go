package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "IDN_001", ErrCodeMalformedIdentifier.String())
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "malformed identifier", DefaultMessageForCode(ErrCodeMalformedIdentifier))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("NOPE_999")))
}

func TestModuleForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeInternal, "COMMON"},
		{ErrCodeResolutionTransport, "RES"},
		{ErrCodeInvalidStageOrder, "CFG"},
		{ErrCodeStageFailed, "PIP"},
		{CodeOK, "UNKNOWN"},
		{ErrorCode(""), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ModuleForCode(tt.code), string(tt.code))
	}
}

func TestAllCodesHaveMessagesAndFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code, msg := range ErrorCodeMessage {
		assert.Regexp(t, pattern, string(code))
		assert.NotEmpty(t, msg, string(code))
	}
}

//Personal.AI order the ending
