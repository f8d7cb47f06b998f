// Package appendlog implements the per-model append-only log segment
// (spec.md §3, §4.1, component C1): framed records, a crash-recoverable
// primary/secondary index rebuild, and a memory-mapped read path.
//
// Grounded on the teacher's pkg/appendlog/fs_store.go (buffered writer
// under an exclusive lock, segment-directory scan on open, atomic
// offset) but with a single never-rotated file per model (spec.md names
// one file per model, not per-size segments) and the framing and index
// semantics spec.md §3 spells out.
package appendlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tysonmote/gommap"

	"github.com/TheRemyyy/nyro-db/internal/codec"
)

// IndexEntry locates a record within the segment file.
type IndexEntry struct {
	Offset uint64 // byte offset of the 4-byte length header
	Size   uint32 // length of the envelope that follows the header
}

// Config configures a Segment.
type Config struct {
	DataDir        string
	Model          string
	BufferSize     int
	EnableMmap     bool
	SyncIntervalMs int
	Logger         Logger
}

// Logger is the minimal logging surface appendlog needs, kept narrow so
// this package does not import internal/logging directly.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// ReadResult is the logical value returned by a read.
type ReadResult struct {
	Timestamp uint64
	Operation codec.Operation
	Data      map[string]any
}

// Segment is one model's append-only file plus its indexes.
type Segment struct {
	model string
	cfg   Config
	log   Logger

	file *os.File

	// writerMu serializes Append so framing is atomic against concurrent
	// writers (spec.md §4.1 step 3).
	writerMu sync.Mutex
	buf      *bufio.Writer

	currentOffset atomic.Uint64

	idxMu     sync.RWMutex
	primary   map[uint64]IndexEntry
	secondary map[string]map[string][]uint64 // field -> stringified value -> ids

	mmapMu sync.RWMutex
	mapped gommap.MMap

	flushStop chan struct{}
	flushDone chan struct{}
}

// Open creates or reopens a segment, performing crash recovery (rebuild)
// before returning (spec.md §4.1 Construction/Rebuild).
func Open(cfg Config) (*Segment, error) {
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 65536
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("appendlog: mkdir data dir: %w", err)
	}
	path := filepath.Join(cfg.DataDir, cfg.Model+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("appendlog: open %s: %w", path, err)
	}

	s := &Segment{
		model:     cfg.Model,
		cfg:       cfg,
		log:       cfg.Logger,
		file:      f,
		primary:   make(map[uint64]IndexEntry),
		secondary: make(map[string]map[string][]uint64),
	}

	if err := s.rebuild(); err != nil {
		_ = f.Close()
		return nil, err
	}

	s.buf = bufio.NewWriterSize(f, cfg.BufferSize)
	// Position the OS file offset at current_offset so buffered writes
	// append after the valid prefix (truncated tails are overwritten).
	if _, err := f.Seek(int64(s.currentOffset.Load()), io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("appendlog: seek to current offset: %w", err)
	}

	if cfg.EnableMmap {
		if err := s.remap(); err != nil {
			s.log.Warnf("appendlog: mmap unavailable for %s: %v", cfg.Model, err)
		}
	}

	if cfg.SyncIntervalMs > 0 {
		s.flushStop = make(chan struct{})
		s.flushDone = make(chan struct{})
		go s.flushLoop(time.Duration(cfg.SyncIntervalMs) * time.Millisecond)
	}

	return s, nil
}

// rebuild performs the sequential scan described in spec.md §4.1. A
// truncated trailing record stops the scan at the last well-formed
// record; the valid prefix becomes the segment's state.
func (s *Segment) rebuild() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("appendlog: seek to start for rebuild: %w", err)
	}
	r := bufio.NewReader(s.file)

	var offset uint64
	for {
		var hdr [codec.LengthHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break // short read of length header: stop at last well-formed record
		}
		n := codec.FrameLength(hdr[:])

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			break // short read of payload: stop at last well-formed record
		}

		entry, err := codec.DecodeEnvelope(payload)
		if err != nil {
			break
		}

		var obj map[string]any
		if err := json.Unmarshal(entry.Data, &obj); err != nil {
			break
		}

		id, err := extractID(obj)
		if err == nil {
			s.primary[id] = IndexEntry{Offset: offset, Size: n}
			s.indexSecondary(id, obj)
		}

		offset += uint64(codec.LengthHeaderSize) + uint64(n)
	}

	s.currentOffset.Store(offset)
	return nil
}

func extractID(obj map[string]any) (uint64, error) {
	raw, ok := obj["id"]
	if !ok {
		return 0, fmt.Errorf("no id field")
	}
	f, ok := raw.(float64)
	if !ok || f < 0 {
		return 0, fmt.Errorf("id not a non-negative number")
	}
	return uint64(f), nil
}

// indexSecondary appends id under every non-id field of obj. Caller must
// hold idxMu for writing (or be single-threaded during rebuild).
func (s *Segment) indexSecondary(id uint64, obj map[string]any) {
	for field, value := range obj {
		if field == "id" {
			continue
		}
		key := stringifyValue(value)
		byValue, ok := s.secondary[field]
		if !ok {
			byValue = make(map[string][]uint64)
			s.secondary[field] = byValue
		}
		byValue[key] = append(byValue[key], id)
	}
}

// stringifyValue produces the canonical string form spec.md §3 requires
// for secondary index keys: JSON text for non-string values, the bare
// string for string values (no surrounding quotes).
func stringifyValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func (s *Segment) remap() error {
	s.mmapMu.Lock()
	defer s.mmapMu.Unlock()
	st, err := s.file.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return nil
	}
	m, err := gommap.Map(s.file.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		return err
	}
	s.mapped = m
	return nil
}

// Append writes a new entry and updates the indexes (spec.md §4.1
// Append). Index insertion happens after the bytes are written to the
// buffer and before the offset is published, so "index entry exists"
// implies "bytes were written".
func (s *Segment) Append(ts uint64, op codec.Operation, data map[string]any) (IndexEntry, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("appendlog: encode data: %w", err)
	}
	envelope := codec.EncodeEnvelope(codec.Entry{Timestamp: ts, Operation: op, Data: encoded})
	n := uint32(len(envelope))

	var hdr [codec.LengthHeaderSize]byte
	codec.PutFrameLength(hdr[:], n)

	// offset must be claimed and currentOffset advanced atomically with
	// respect to other writers, all inside writerMu: otherwise two
	// concurrent Append calls can both load the same offset before
	// either advances it, producing two index entries that point at the
	// same bytes (the second id silently aliasing the first record).
	s.writerMu.Lock()
	offset := s.currentOffset.Load()
	if _, err := s.buf.Write(hdr[:]); err != nil {
		s.writerMu.Unlock()
		return IndexEntry{}, fmt.Errorf("appendlog: write length header: %w", err)
	}
	if _, err := s.buf.Write(envelope); err != nil {
		s.writerMu.Unlock()
		return IndexEntry{}, fmt.Errorf("appendlog: write envelope: %w", err)
	}

	entry := IndexEntry{Offset: offset, Size: n}

	if id, idErr := extractID(data); idErr == nil {
		s.idxMu.Lock()
		s.primary[id] = entry
		s.indexSecondary(id, data)
		s.idxMu.Unlock()
	}

	s.currentOffset.Add(uint64(codec.LengthHeaderSize) + uint64(n))
	s.writerMu.Unlock()

	return entry, nil
}

// CurrentOffset returns the current write offset (spec.md §3 invariant:
// equals the byte length of the written portion at quiescent moments).
func (s *Segment) CurrentOffset() uint64 {
	return s.currentOffset.Load()
}

// Get performs a point read by id (spec.md §4.1 Point read).
func (s *Segment) Get(id uint64) (ReadResult, bool, error) {
	s.idxMu.RLock()
	entry, ok := s.primary[id]
	s.idxMu.RUnlock()
	if !ok {
		return ReadResult{}, false, nil
	}
	res, err := s.readAt(entry)
	if err != nil {
		return ReadResult{}, false, err
	}
	return res, true, nil
}

// ScanAll enumerates every record in the primary index (spec.md §4.1
// Scan all). Order is unspecified.
func (s *Segment) ScanAll() ([]ReadResult, error) {
	s.idxMu.RLock()
	entries := make([]IndexEntry, 0, len(s.primary))
	for _, e := range s.primary {
		entries = append(entries, e)
	}
	s.idxMu.RUnlock()

	out := make([]ReadResult, 0, len(entries))
	for _, e := range entries {
		res, err := s.readAt(e)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// QueryField performs an equality lookup via the secondary index
// (spec.md §4.1 Field equality read).
func (s *Segment) QueryField(field, value string) ([]ReadResult, error) {
	s.idxMu.RLock()
	byValue, ok := s.secondary[field]
	if !ok {
		s.idxMu.RUnlock()
		return nil, nil
	}
	ids, ok := byValue[value]
	if !ok {
		s.idxMu.RUnlock()
		return nil, nil
	}
	entries := make([]IndexEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.primary[id]; ok {
			entries = append(entries, e)
		}
	}
	s.idxMu.RUnlock()

	out := make([]ReadResult, 0, len(entries))
	for _, e := range entries {
		res, err := s.readAt(e)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// readAt decodes the envelope at entry, preferring the mmap when the
// range lies within its length (spec.md §4.1 Memory-mapped reads).
func (s *Segment) readAt(entry IndexEntry) (ReadResult, error) {
	start := entry.Offset + uint64(codec.LengthHeaderSize)
	end := start + uint64(entry.Size)

	var payload []byte
	s.mmapMu.RLock()
	if s.mapped != nil && end <= uint64(len(s.mapped)) {
		payload = make([]byte, entry.Size)
		copy(payload, s.mapped[start:end])
		s.mmapMu.RUnlock()
	} else {
		s.mmapMu.RUnlock()
		payload = make([]byte, entry.Size)
		if _, err := s.file.ReadAt(payload, int64(start)); err != nil {
			// The record may still sit in the user-space write buffer:
			// push it to the file and read once more.
			if ferr := s.Flush(); ferr != nil {
				return ReadResult{}, fmt.Errorf("appendlog: flush before positioned read: %w", ferr)
			}
			if _, err := s.file.ReadAt(payload, int64(start)); err != nil {
				return ReadResult{}, fmt.Errorf("appendlog: positioned read: %w", err)
			}
		}
	}

	env, err := codec.DecodeEnvelope(payload)
	if err != nil {
		return ReadResult{}, fmt.Errorf("appendlog: decode envelope: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ReadResult{}, fmt.Errorf("appendlog: decode data json: %w", err)
	}
	return ReadResult{Timestamp: env.Timestamp, Operation: env.Operation, Data: data}, nil
}

func (s *Segment) flushLoop(interval time.Duration) {
	defer close(s.flushDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.Flush(); err != nil {
				s.log.Errorf("appendlog: periodic flush failed for %s: %v", s.model, err)
			}
		case <-s.flushStop:
			return
		}
	}
}

// Flush flushes the buffered writer to the operating system (spec.md
// §4.1 Flush timer / Shutdown).
func (s *Segment) Flush() error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	return s.buf.Flush()
}

// Close stops the flush timer and flushes outstanding bytes. It does
// not unmap or close the file descriptor (spec.md §4.1 Shutdown: process
// exit reclaims them).
func (s *Segment) Close() error {
	if s.flushStop != nil {
		close(s.flushStop)
		<-s.flushDone
	}
	return s.Flush()
}
