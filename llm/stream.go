package llm

import (
	"bufio"
	"io"
)

// maxLineSize bounds a single streamed JSON line (1MB)
const maxLineSize = 1024 * 1024

// newLineScanner wraps a response body for newline-delimited JSON reads
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}
