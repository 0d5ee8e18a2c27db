package gsc

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"searchlens/internal/domain"
)

// antiXSSIPrefix is the junk line the service emits before any frames so the
// body is not valid JSON.
const antiXSSIPrefix = ")]}'"

// readFrames parses a framed response body: an anti-hijack prefix line, then
// repeated (decimal byte count line, JSON chunk) pairs until EOF. The byte
// count covers raw chunk bytes, not characters. Blank lines between frames
// are tolerated; a short chunk or a non-numeric count line is a decode error.
func readFrames(r io.Reader) ([]json.RawMessage, error) {
	br := bufio.NewReader(r)
	sawPrefix := false
	var frames []json.RawMessage

	for {
		line, err := readLine(br)
		if err != nil && err != io.EOF {
			return nil, domain.Wrap(domain.RpcDecodeError, "reading frame length", err)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err == io.EOF {
				break
			}
			continue
		}
		if !sawPrefix && trimmed == antiXSSIPrefix {
			sawPrefix = true
			continue
		}
		sawPrefix = true

		n, convErr := strconv.Atoi(trimmed)
		if convErr != nil || n < 0 {
			return nil, domain.Errorf(domain.RpcDecodeError, "bad frame length line %q", truncate(trimmed, 40))
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, domain.Wrap(domain.RpcDecodeError, "frame shorter than its declared length", err)
		}
		if !json.Valid(chunk) {
			return nil, domain.Errorf(domain.RpcDecodeError, "frame of %d bytes is not valid JSON", n)
		}
		frames = append(frames, json.RawMessage(chunk))
		if err == io.EOF {
			break
		}
	}

	if len(frames) == 0 {
		return nil, domain.Errorf(domain.RpcDecodeError, "response contained no frames")
	}
	return frames, nil
}

// readLine returns a line without its terminator. On EOF it returns whatever
// was read alongside io.EOF.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err == io.EOF {
		return line, io.EOF
	}
	return line, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
