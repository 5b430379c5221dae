package db

import (
	"errors"
	"strings"
)

// IsUniqueViolation reports whether the error chain references a Postgres
// unique violation. When constraintName is provided, the helper looks for the
// constraint text anywhere in the chain.
func IsUniqueViolation(err error, constraintName string) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if constraintName != "" {
			if strings.Contains(msg, constraintName) {
				return true
			}
			continue
		}
		if strings.Contains(msg, "duplicate key value") {
			return true
		}
	}
	return false
}
