// Package bytesource implements the byte source contract of spec.md §4.1:
// a position-tracking reader with a look-back ring buffer, optional live
// blocking-with-timeout semantics, and binary-concat chaining across
// successive input files. Network receive and file buffering are modeled
// here only as thin io.Reader adapters (UDP/TCP/SRT); the protocol work
// itself belongs to internal/ingest/srt and net, not to this package.
package bytesource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"
)

// Errors returned by Source methods.
var (
	// ErrEOF is returned when the source is permanently exhausted.
	ErrEOF = io.EOF
	// ErrTransientEOF is returned by a live source when its read
	// timeout elapses with no data available; callers should retry.
	ErrTransientEOF = errors.New("bytesource: transient EOF (live timeout)")
)

const ringBufferSize = 16 * 1024 * 1024 // ≥16 MiB per spec.md §4.1
const minLookBack = 8                   // guaranteed look-back per spec.md §9

// Opener yields the next underlying reader in binary-concat mode. It
// returns io.EOF when there are no more inputs.
type Opener func() (io.ReadCloser, error)

// Source is a position-tracking byte source with ring-buffered look-back.
// It is not safe for concurrent use.
type Source struct {
	log    *slog.Logger
	open   Opener
	reader io.ReadCloser
	live   bool
	timeout time.Duration

	ring    []byte // ring buffer of the most recently read bytes
	ringPos int    // logical position of ring[0] in the byte stream

	bytesPast int64 // monotonic count of bytes consumed via Read
	pending   []byte // bytes pushed back via ReturnToBuffer, consumed first

	eof bool
}

// Options configure a Source.
type Options struct {
	// Live, when true, makes Read return ErrTransientEOF instead of
	// blocking forever once Timeout elapses with no data. Timeout <=0
	// with Live true means block indefinitely (LiveStream == -1 in
	// config.Config).
	Live    bool
	Timeout time.Duration
	Log     *slog.Logger
}

// NewSingle creates a Source over a single reader (no concat chaining).
func NewSingle(r io.Reader, opts Options) *Source {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return newSource(func() (io.ReadCloser, error) {
		return nil, io.EOF
	}, rc, opts)
}

// NewConcat creates a Source that opens files lazily via next, chaining
// them so the logical byte position stays monotonic across files
// (spec.md §4.1 "binary concat" mode).
func NewConcat(next Opener, opts Options) (*Source, error) {
	first, err := next()
	if err != nil {
		return nil, fmt.Errorf("bytesource: opening first input: %w", err)
	}
	return newSource(next, first, opts), nil
}

// NewFiles creates a concat Source over a fixed list of file paths.
func NewFiles(paths []string, opts Options) (*Source, error) {
	i := 0
	return NewConcat(func() (io.ReadCloser, error) {
		if i >= len(paths) {
			return nil, io.EOF
		}
		p := paths[i]
		i++
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("bytesource: opening %s: %w", p, err)
		}
		return f, nil
	}, opts)
}

// NewNetwork wraps a net.Conn (UDP or TCP) as a live Source, honoring
// the config.Config LiveStream timeout semantics: timeout<0 blocks
// forever, timeout==0 means this isn't actually live, timeout>0 applies
// a read deadline per read and yields ErrTransientEOF on expiry.
func NewNetwork(conn net.Conn, timeoutSeconds int32) *Source {
	live := timeoutSeconds != 0
	var timeout time.Duration
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return NewSingle(&deadlineReader{conn: conn, timeout: timeout, live: live}, Options{
		Live:    live,
		Timeout: timeout,
	})
}

func newSource(open Opener, first io.ReadCloser, opts Options) *Source {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		log:     log.With("component", "bytesource"),
		open:    open,
		reader:  first,
		live:    opts.Live,
		timeout: opts.Timeout,
		ring:    make([]byte, 0, ringBufferSize),
	}
}

// deadlineReader applies a read deadline to a net.Conn and translates
// expiry into io.EOF so it composes with Source's normal EOF handling;
// Source itself decides whether that's transient based on opts.Live.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
	live    bool
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		_ = d.conn.SetReadDeadline(time.Now().Add(d.timeout))
	}
	n, err := d.conn.Read(p)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, io.EOF
		}
	}
	return n, err
}

// Position returns the current monotonic logical byte position.
func (s *Source) Position() int64 { return s.bytesPast }

// ReturnToBuffer prepends data to the front of the read queue, to be
// re-delivered on the next Read call(s), implementing the "ungetc-like"
// look-back operation of spec.md §9. Used by container resynchronization
// after a failed sync-byte scan.
func (s *Source) ReturnToBuffer(data []byte) {
	s.pending = append(append([]byte(nil), data...), s.pending...)
	s.bytesPast -= int64(len(data))
}

// LookBack returns up to n bytes ending at the current position, without
// advancing or rewinding it. Returns fewer bytes if not enough history
// is buffered; at least minLookBack bytes are always retained when
// available.
func (s *Source) LookBack(n int) []byte {
	if n > len(s.ring) {
		n = len(s.ring)
	}
	if n <= 0 {
		return nil
	}
	return append([]byte(nil), s.ring[len(s.ring)-n:]...)
}

// Read fills p and advances the logical position. It blocks on the
// underlying reader (subject to a live timeout, per Options); EOF on a
// concat source transparently opens the next input.
func (s *Source) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(s.pending) > 0 {
			n := copy(p[total:], s.pending)
			s.pending = s.pending[n:]
			total += n
			s.bytesPast += int64(n)
			s.appendRing(p[total-n : total])
			continue
		}
		if s.eof {
			if total > 0 {
				return total, nil
			}
			return 0, ErrEOF
		}
		n, err := s.reader.Read(p[total:])
		if n > 0 {
			total += n
			s.bytesPast += int64(n)
			s.appendRing(p[total-n : total])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s.live {
					if total > 0 {
						return total, nil
					}
					return 0, ErrTransientEOF
				}
				if advErr := s.advance(); advErr != nil {
					s.eof = true
					if total > 0 {
						return total, nil
					}
					return 0, ErrEOF
				}
				continue
			}
			return total, fmt.Errorf("bytesource: %w", err)
		}
	}
	return total, nil
}

// Skip advances the logical position by n bytes without returning them.
func (s *Source) Skip(n int64) error {
	buf := make([]byte, 4096)
	for n > 0 {
		chunk := int64(len(buf))
		if n < chunk {
			chunk = n
		}
		read, err := s.Read(buf[:chunk])
		n -= int64(read)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) advance() error {
	_ = s.reader.Close()
	next, err := s.open()
	if err != nil {
		return err
	}
	s.reader = next
	return nil
}

func (s *Source) appendRing(b []byte) {
	s.ring = append(s.ring, b...)
	if excess := len(s.ring) - ringBufferSize; excess > 0 {
		s.ring = s.ring[excess:]
	}
}

// Close releases the underlying reader.
func (s *Source) Close() error {
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}
