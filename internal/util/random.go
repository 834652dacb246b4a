// Package util provides small shared helpers for the MachinePilot demo.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomID generates a random ID in the format "{prefix}{hex}".
// Uses math/rand; these ids are demo artifacts, not security tokens.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the given length.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateNumericCode generates a random digit string, used for OTP codes and
// profile keys.
func GenerateNumericCode(length int) string {
	if length <= 0 {
		return ""
	}

	const digits = "0123456789"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(digits[rand.Intn(10)])
	}

	return builder.String()
}

// GenerateDeviceID generates a device id with the "mp-" prefix.
func GenerateDeviceID() string {
	return GenerateRandomID("mp-", 12)
}

// GenerateResetToken generates a single-use password reset token.
func GenerateResetToken() string {
	return GenerateRandomID("rt_", 32)
}
