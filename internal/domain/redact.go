// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

const redactedValue = "********"

// RedactString replaces a secret with a fixed placeholder for API responses.
// Empty secrets stay empty so callers can distinguish "unset" from "hidden".
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// IsRedactedString reports whether a value is the redaction placeholder,
// meaning the client sent back an unchanged secret field.
func IsRedactedString(s string) bool {
	return s == redactedValue
}
