package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error so they can be returned before the Go allocator is usable
// and compared by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
