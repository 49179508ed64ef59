package zhipu

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

var errStreamDone = errors.New("stream done")

// readDataLines calls onData with the trimmed payload of every "data:" line. Other lines are
// ignored. It returns nil on EOF or when the done sentinel is seen.
func readDataLines(r io.Reader, onData func(payload string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if herr := handleLine(line, onData); herr != nil {
				if errors.Is(herr, errStreamDone) {
					return nil
				}
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func handleLine(line string, onData func(payload string) error) error {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel {
		return errStreamDone
	}
	return onData(payload)
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

var contentUnescaper = strings.NewReplacer(`\"`, `"`, `\\`, `\`)

// decodeDelta extracts choices[0].delta.content from one event payload. ok is false when the
// payload carries no content. An upstream error envelope is reported as a *StreamError; like any
// other undecodable line it is skipped by the caller and the stream keeps going.
func decodeDelta(payload string) (delta string, ok bool, err error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false, err
	}
	if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
		return "", false, &StreamError{Payload: string(chunk.Error)}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false, nil
	}
	return contentUnescaper.Replace(*chunk.Choices[0].Delta.Content), true, nil
}
