package dyncc

// Tester for testing purpose.
type Tester interface {
	Test() bool
}

// Proto for testing purpose.
type Proto interface {
	Name() string
	Action() string
}
