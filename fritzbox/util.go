package fritzbox

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// GetContent reads at most a short prefix of the body for error reporting
// and closes it.
func GetContent(r *http.Response) string {
	defer r.Body.Close()
	s, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
	return strings.TrimSpace(string(s))
}

func Concat(args ...string) string {
	var buffer bytes.Buffer
	for _, arg := range args {
		buffer.WriteString(arg)
	}
	return buffer.String()
}
