// Package secret holds short-lived credentials, such as a PDF password, that
// must not outlive the operation they were supplied for.
package secret

import "sync"

// Secret is a wipeable byte buffer. The zero value and a nil *Secret are
// both absent.
type Secret struct {
	mu sync.Mutex
	b  []byte
}

// New copies s into a Secret. An empty s yields an absent Secret.
func New(s string) *Secret {
	if s == "" {
		return &Secret{}
	}
	return &Secret{b: []byte(s)}
}

// FromBytes takes ownership of b; the caller must not reuse it.
func FromBytes(b []byte) *Secret {
	return &Secret{b: b}
}

// Present reports whether the secret still holds a value.
func (s *Secret) Present() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.b) > 0
}

// Use calls fn with the secret value. fn must not retain the string.
// Use returns fn's error, or nil without calling fn when absent.
func (s *Secret) Use(fn func(value string) error) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if len(s.b) == 0 {
		s.mu.Unlock()
		return nil
	}
	v := string(s.b)
	s.mu.Unlock()
	return fn(v)
}

// Reveal returns the value, or "" when absent.
func (s *Secret) Reveal() string {
	var v string
	_ = s.Use(func(value string) error {
		v = value
		return nil
	})
	return v
}

// Wipe zeroes the buffer and marks the secret absent. Safe to call more
// than once and on a nil receiver.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}

// String never prints the value.
func (s *Secret) String() string {
	if s.Present() {
		return "[redacted]"
	}
	return "[absent]"
}
