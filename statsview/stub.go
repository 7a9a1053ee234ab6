//go:build !statsview

package statsview

import "io"

const Address = ""

// Launch is a stub that does nothing.
func Launch(_ io.Writer) {
}

// Available returns false when the statsview build tag is absent.
func Available() bool {
	return false
}
