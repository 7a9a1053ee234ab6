// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package logger is the central diagnostic log shared by the machine, the
// peripherals and the host frontends. Consecutive identical entries are
// collapsed into a single entry with a repeat count, which keeps a guest
// hammering an unmapped address from flooding the log.
package logger

import (
	"fmt"
	"io"
)

// only one central log for the entire application.
var central *logger

// maximum number of entries in the central logger.
const maxCentral = 256

func init() {
	central = newLogger(maxCentral)
}

// Log adds an entry to the central logger.
func Log(tag, detail string) {
	central.log(tag, detail)
}

// Logf adds a formatted entry to the central logger.
func Logf(tag, detail string, args ...any) {
	central.log(tag, fmt.Sprintf(detail, args...))
}

// Clear all entries from central logger.
func Clear() {
	central.clear()
}

// Write contents of central logger to io.Writer. Returns false if there was
// nothing to write.
func Write(output io.Writer) bool {
	return central.write(output)
}

// Tail writes the last N entries to io.Writer.
func Tail(output io.Writer, number int) {
	central.tail(output, number)
}

// SetEcho prints new log entries to io.Writer as they arrive. A nil writer
// turns echoing off.
func SetEcho(output io.Writer) {
	central.setEcho(output)
}

// Entries returns a copy of the current log.
func Entries() []Entry {
	return central.copy()
}
