// Package fieldcache persists the per-destination distance fields of a map so
// a run on an unchanged map can skip flow-field generation.
package fieldcache

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
)

const FormatVersion = 1

var (
	// ErrCacheMiss means no usable blob exists for the key; the caller
	// regenerates the fields.
	ErrCacheMiss = errors.New("field cache miss")
	// ErrCorruptCache means a blob exists but cannot be decoded or its payload
	// does not match its own header. Also recoverable by regeneration.
	ErrCorruptCache = errors.New("field cache corrupt")
)

// Key identifies the field tensor of one map configuration.
type Key struct {
	MapVersion   string
	MapSize      int
	Destinations []nav.Cell
	Mode         nav.Mode
}

// Header is written as a plain JSON line ahead of the gob payload so the
// shape can be inspected without decoding the tensor.
type Header struct {
	Version      int    `json:"version"`
	MapVersion   string `json:"map_version"`
	MapSize      int    `json:"map_size"`
	Destinations int    `json:"destinations"`
	Mode         string `json:"mode"`
}

type blobV1 struct {
	Header Header
	Dests  []nav.Cell
	Fields [][]float32
}

// MapVersion hashes everything that determines the fields of a map.
func MapVersion(size int, walls []geometry.Wall, dests []nav.Cell, mode nav.Mode) string {
	h := sha256.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	putInt(FormatVersion)
	putInt(size)
	putInt(len(walls))
	for _, w := range walls {
		putInt(w.Start.X)
		putInt(w.Start.Y)
		putInt(w.End.X)
		putInt(w.End.Y)
		putInt(w.Thickness)
	}
	putInt(nav.BufferCells)
	putInt(len(dests))
	for _, d := range dests {
		putInt(d.X)
		putInt(d.Y)
	}
	h.Write([]byte(mode))
	return hex.EncodeToString(h.Sum(nil))
}

// Store keeps one blob per map version in a directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(mapVersion string) string {
	name := mapVersion
	if len(name) > 16 {
		name = name[:16]
	}
	return filepath.Join(s.dir, "fields-"+name+".bin.zst")
}

// Save writes the fields atomically (temp file + rename).
func (s *Store) Save(key Key, fields []*nav.Field) error {
	if len(fields) != len(key.Destinations) {
		return fmt.Errorf("fieldcache: %d fields for %d destinations", len(fields), len(key.Destinations))
	}
	blob := blobV1{
		Header: Header{
			Version:      FormatVersion,
			MapVersion:   key.MapVersion,
			MapSize:      key.MapSize,
			Destinations: len(key.Destinations),
			Mode:         string(key.Mode),
		},
		Dests:  append([]nav.Cell(nil), key.Destinations...),
		Fields: make([][]float32, len(fields)),
	}
	for i, f := range fields {
		if f.Size() != key.MapSize {
			return fmt.Errorf("fieldcache: field %d has size %d, want %d", i, f.Size(), key.MapSize)
		}
		blob.Fields[i] = f.Raw()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".fields-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := writeBlob(tmp, &blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.Path(key.MapVersion)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeBlob(w io.Writer, blob *blobV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(blob.Header)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(blob); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Load returns the cached fields for key. A missing blob or one written for a
// different shape yields ErrCacheMiss; an undecodable one ErrCorruptCache.
func (s *Store) Load(key Key) ([]*nav.Field, error) {
	f, err := os.Open(s.Path(key.MapVersion))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key.MapVersion)
		}
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 256*1024)

	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(hdr, key); err != nil {
		return nil, err
	}

	var blob blobV1
	if err := gob.NewDecoder(br).Decode(&blob); err != nil {
		return nil, fmt.Errorf("%w: gob decode: %v", ErrCorruptCache, err)
	}
	if blob.Header != hdr || len(blob.Fields) != hdr.Destinations || len(blob.Dests) != hdr.Destinations {
		return nil, fmt.Errorf("%w: payload does not match header", ErrCorruptCache)
	}
	for i, d := range key.Destinations {
		if blob.Dests[i] != d {
			return nil, fmt.Errorf("%w: destination %d moved", ErrCacheMiss, i)
		}
	}
	out := make([]*nav.Field, len(blob.Fields))
	for i, raw := range blob.Fields {
		fld, err := nav.NewField(hdr.MapSize, blob.Dests[i], raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrCorruptCache, i, err)
		}
		out[i] = fld
	}
	return out, nil
}

func readHeader(br *bufio.Reader) (Header, error) {
	var hdr Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return hdr, fmt.Errorf("%w: header: %v", ErrCorruptCache, err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, fmt.Errorf("%w: header: %v", ErrCorruptCache, err)
	}
	return hdr, nil
}

// ReadHeader decodes only the header line of the blob at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

// List returns the blob paths of the store in name order.
func (s *Store) List() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "fields-*.bin.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func checkHeader(h Header, key Key) error {
	switch {
	case h.Version != FormatVersion:
		return fmt.Errorf("%w: format version %d", ErrCacheMiss, h.Version)
	case h.MapVersion != key.MapVersion:
		return fmt.Errorf("%w: map version %s", ErrCacheMiss, h.MapVersion)
	case h.MapSize != key.MapSize:
		return fmt.Errorf("%w: map size %d, want %d", ErrCacheMiss, h.MapSize, key.MapSize)
	case h.Destinations != len(key.Destinations):
		return fmt.Errorf("%w: %d destinations, want %d", ErrCacheMiss, h.Destinations, len(key.Destinations))
	case h.Mode != string(key.Mode):
		return fmt.Errorf("%w: mode %q, want %q", ErrCacheMiss, h.Mode, key.Mode)
	}
	return nil
}
