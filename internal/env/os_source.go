package env

import (
	"os"
	"unicode/utf8"
)

// OSSource reads values from the running process environment.
type OSSource struct{}

// NewOSSource creates an OSSource.
func NewOSSource() *OSSource {
	return &OSSource{}
}

// Var looks key up with os.LookupEnv. A variable that is set to an empty
// string is present and returned as such.
func (s *OSSource) Var(key string) (string, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return "", &VarError{Key: key, Reason: ReasonNotPresent}
	}
	if !utf8.ValidString(val) {
		return "", &VarError{Key: key, Reason: ReasonNotUnicode}
	}
	return val, nil
}
