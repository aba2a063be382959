package upstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	// Streamed choices carry partial generations; individual events stay
	// small, but prompts echoed back by some servers can inflate a line.
	// Lines beyond this are dropped and decoding resyncs at the next
	// newline.
	maxLineBytes = 1 << 20

	readBufferBytes = 64 * 1024
)

// Chunk is one decoded upstream completion event carrying at least one choice.
type Chunk struct {
	Texts []string
}

// DecodeStats reports what a single pass over an upstream stream produced.
type DecodeStats struct {
	Events  int
	Dropped int
}

// DecodeStream reads the upstream event stream line by line and calls emit
// once per event that carries a non-empty choices list, in stream order.
//
// Lines without the event-data prefix and the terminal [DONE] marker are
// ignored. Malformed JSON, events without choices and over-long lines are
// dropped without aborting the stream; upstream servers interleave
// keep-alive and usage-only frames that look exactly like this. Decoding
// stops when the reader is exhausted or emit returns an error.
func DecodeStream(r io.Reader, emit func(Chunk) error) (DecodeStats, error) {
	var stats DecodeStats

	reader := bufio.NewReaderSize(r, readBufferBytes)
	var line []byte
	discarding := false

	for {
		fragment, isPrefix, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}

		// Skipping the remainder of a line that outgrew the cap.
		if discarding {
			if !isPrefix {
				discarding = false
			}
			continue
		}

		line = append(line, fragment...)
		if isPrefix {
			if len(line) > maxLineBytes {
				slog.Debug("skipping over-long stream line", "bytes", len(line))
				stats.Dropped++
				discarding = true
				line = line[:0]
			}
			continue
		}

		if err := decodeLine(string(line), &stats, emit); err != nil {
			return stats, err
		}
		line = line[:0]
	}
}

func decodeLine(line string, stats *DecodeStats, emit func(Chunk) error) error {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return nil
	}
	if strings.TrimSpace(payload) == doneMarker {
		return nil
	}

	var event completionResponse
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		slog.Debug("skipping malformed stream line", "error", err)
		stats.Dropped++
		return nil
	}
	if len(event.Choices) == 0 {
		stats.Dropped++
		return nil
	}

	if err := emit(Chunk{Texts: event.texts()}); err != nil {
		return err
	}
	stats.Events++
	return nil
}
