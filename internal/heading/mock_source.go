package heading

import "sync"

// MockSource is an in-memory Source for tests and hardware-free runs.
type MockSource struct {
	mu  sync.Mutex
	yaw float64
	err error
}

// NewMockSource creates a mock heading source reading zero.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// SetYaw sets the heading the source will report, in degrees.
func (s *MockSource) SetYaw(yaw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yaw = yaw
}

// SetErr makes subsequent Yaw calls fail with err. Pass nil to recover.
func (s *MockSource) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MockSource) Yaw() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.yaw, nil
}

func (s *MockSource) Zero() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yaw = 0
	return nil
}
