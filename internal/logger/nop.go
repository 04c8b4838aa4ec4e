package logger

// NoOp discards every entry.
type NoOp struct{}

// NewNoOp creates a logger that does nothing.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (NoOp) Debug(string, ...Field)      {}
func (NoOp) Info(string, ...Field)       {}
func (NoOp) Warn(string, ...Field)       {}
func (NoOp) Error(string, ...Field)      {}
func (n *NoOp) With(...Field) Interface { return n }
func (NoOp) Sync() error                 { return nil }
