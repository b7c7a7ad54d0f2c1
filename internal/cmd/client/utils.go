package client

import (
	"bufio"
	"io"
	"strings"
)

// sseFrame is one parsed Server-Sent Events frame.
type sseFrame struct {
	Event string
	ID    string
	Data  string
	// Comment holds keep-alive comment lines (": ping").
	Comment string
}

// readSSE parses frames from r and invokes fn per frame. It returns when r
// ends, fn returns an error, or fn returns false to stop.
func readSSE(r io.Reader, fn func(sseFrame) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var frame sseFrame
	flush := func() (bool, error) {
		if frame == (sseFrame{}) {
			return true, nil
		}
		f := frame
		frame = sseFrame{}
		return fn(f)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			cont, err := flush()
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			frame.Comment = strings.TrimSpace(strings.TrimPrefix(line, ":"))
		case strings.HasPrefix(line, "event: "):
			frame.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "id: "):
			frame.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			if frame.Data != "" {
				frame.Data += "\n"
			}
			frame.Data += strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, "retry: "):
			// reconnect hint, nothing to surface
		}
	}
	if _, err := flush(); err != nil {
		return err
	}
	return scanner.Err()
}
