package env

// MapSource is a Source backed by an explicit mapping. Tests populate it with
// Set before handing it to the code under test. It is not safe for concurrent
// mutation.
type MapSource struct {
	vars map[string]string
}

// NewMapSource creates an empty MapSource.
func NewMapSource() *MapSource {
	return &MapSource{vars: make(map[string]string)}
}

// Set stores value under key and returns the value it replaced, if any.
func (s *MapSource) Set(key, value string) (string, bool) {
	prev, ok := s.vars[key]
	s.vars[key] = value
	return prev, ok
}

// Var returns the value stored under key.
func (s *MapSource) Var(key string) (string, error) {
	val, ok := s.vars[key]
	if !ok {
		return "", &MissingVarError{Key: key}
	}
	return val, nil
}
