package server

import (
	"fmt"
	"strings"
)

// response accumulates one reply: either a single-line +OK/ERROR, or a
// multi-line body terminated by END.
type response struct {
	lines []string
}

func ok(lines ...string) response {
	r := response{lines: append([]string{"+OK"}, lines...)}
	if len(lines) > 0 {
		r.lines = append(r.lines, "END")
	}
	return r
}

func okValue(format string, args ...interface{}) response {
	return response{lines: []string{"+OK " + fmt.Sprintf(format, args...)}}
}

func errResponse(message string) response {
	return response{lines: []string{"ERROR " + message}}
}

func (r response) render() string {
	return strings.Join(r.lines, "\r\n") + "\r\n"
}
