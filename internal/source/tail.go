package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kmataru/lantern/internal/event"
)

const (
	// DefaultSeedLines bounds how much history is replayed when a file
	// tail starts.
	DefaultSeedLines = 500

	pollInterval = 200 * time.Millisecond
)

// Sink receives parsed records; in the wired application it is the
// pipeline's Enqueue.
type Sink func(rec event.Record)

// SeedLines returns at most maxLines from the end of the file at path,
// oldest first. A missing file is not an error; the tail picks the file
// up once it appears.
func SeedLines(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// TailFile replays up to seedLines of history, then follows path until
// ctx is cancelled, parsing each appended line and handing it to sink.
// Truncation (rotation in place) restarts reading from the top.
func TailFile(ctx context.Context, path string, seedLines int, parser *Parser, sink Sink) error {
	seed, err := SeedLines(path, seedLines)
	if err != nil {
		return err
	}
	for _, line := range seed {
		sink(parser.Parse([]byte(line)))
	}

	var file *os.File
	var reader *bufio.Reader
	var offset int64

	open := func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return err
		}
		file = f
		offset = end
		reader = bufio.NewReader(f)
		return nil
	}
	if err := open(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tail %s: %w", path, err)
	}
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if file == nil {
			if err := open(); err != nil {
				continue
			}
			// A file that appeared after startup is read from the top.
			if _, err := file.Seek(0, io.SeekStart); err == nil {
				offset = 0
				reader.Reset(file)
			}
		}

		if info, err := os.Stat(path); err == nil && info.Size() < offset {
			slog.Debug("log file truncated, restarting tail", "path", path)
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				file.Close()
				file = nil
				continue
			}
			offset = 0
			reader.Reset(file)
		}

		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 && err == nil {
				offset += int64(len(line))
				sink(parser.Parse([]byte(line)))
				continue
			}
			// Partial line without newline: wait for the rest.
			if len(line) > 0 && errors.Is(err, io.EOF) {
				if _, serr := file.Seek(offset, io.SeekStart); serr == nil {
					reader.Reset(file)
				}
			}
			break
		}
	}
}

// Stream parses newline-delimited records from r (typically stdin)
// until EOF or cancellation.
func Stream(ctx context.Context, r io.Reader, parser *Parser, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		sink(parser.Parse(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
