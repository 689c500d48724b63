package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.  Codes
// are "<MODULE>_<NNN>" so that ModuleForCode can recover the owning layer.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Sentinel pseudo-codes.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Identifier Module Error Codes
const (
	ErrCodeMalformedIdentifier ErrorCode = "IDN_001"
)

// Resolution Module Error Codes
const (
	ErrCodeResolutionTimeout        ErrorCode = "RES_001"
	ErrCodeResolutionTransport      ErrorCode = "RES_002"
	ErrCodeCircuitOpen              ErrorCode = "RES_003"
	ErrCodeAuthorityResponseInvalid ErrorCode = "RES_004"
	ErrCodeAuthorityRateLimited     ErrorCode = "RES_005"
)

// Configuration Error Codes
const (
	ErrCodeConfiguration            ErrorCode = "CFG_001"
	ErrCodeUnknownMatchMode         ErrorCode = "CFG_002"
	ErrCodeInvalidStageOrder        ErrorCode = "CFG_003"
	ErrCodeUnknownStageMethod       ErrorCode = "CFG_004"
	ErrCodeUnknownCompositeHandling ErrorCode = "CFG_005"
)

// Pipeline Error Codes
const (
	ErrCodeStageFailed        ErrorCode = "PIP_001"
	ErrCodePipelineAborted    ErrorCode = "PIP_002"
	ErrCodeInvariantViolation ErrorCode = "PIP_003"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeMalformedIdentifier: "malformed identifier",

	ErrCodeResolutionTimeout:        "resolution authority timed out",
	ErrCodeResolutionTransport:      "resolution authority transport failure",
	ErrCodeCircuitOpen:              "resolution circuit breaker open",
	ErrCodeAuthorityResponseInvalid: "resolution authority returned an invalid response",
	ErrCodeAuthorityRateLimited:     "resolution authority rate limited",

	ErrCodeConfiguration:            "invalid configuration",
	ErrCodeUnknownMatchMode:         "unknown match_mode",
	ErrCodeInvalidStageOrder:        "invalid stage ordering",
	ErrCodeUnknownStageMethod:       "unknown stage method",
	ErrCodeUnknownCompositeHandling: "unknown composite_handling",

	ErrCodeStageFailed:        "stage failed",
	ErrCodePipelineAborted:    "pipeline aborted",
	ErrCodeInvariantViolation: "pipeline invariant violated",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
