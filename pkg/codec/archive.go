package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/bimtiles/pkg/geometry"
)

const (
	archiveMagic   = "XGC\x00"
	archiveVersion = 1
	headerSize     = 20
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid XGC magic")
	ErrUnsupportedVersion = errors.New("unsupported XGC version")
	ErrEntryNotFound      = errors.New("entry not found")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrWriterClosed       = errors.New("archive writer closed")
	ErrCorruptEntry       = errors.New("entry size does not match its data")
)

// maxPrealloc bounds the buffer inflate reserves up front from a stored size.
const maxPrealloc = 1 << 20

// Header is the fixed-size start of an XGC archive.
type Header struct {
	Magic       [4]byte
	Version     uint32
	EntryCount  uint32
	TableOffset uint64
}

// Entry locates one compressed record inside an archive.
type Entry struct {
	ID             string
	Offset         uint64
	CompressedSize uint32
	Size           uint32
}

// Writer appends records to an XGC archive. The header and entry table are
// written by Close.
type Writer struct {
	ws      io.WriteSeeker
	closer  io.Closer
	level   int
	offset  uint64
	entries []Entry
	ids     map[string]struct{}
	closed  bool
}

// Create creates the archive file at path. level is a zlib compression level.
func Create(path string, level int) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	w, err := NewWriter(file, level)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.closer = file
	return w, nil
}

// NewWriter starts an archive on ws, which must be positioned at its start.
func NewWriter(ws io.WriteSeeker, level int) (*Writer, error) {
	if _, err := zlib.NewWriterLevel(io.Discard, level); err != nil {
		return nil, fmt.Errorf("compression level %d: %w", level, err)
	}
	// Reserve the header; Close fills it in.
	if _, err := ws.Write(make([]byte, headerSize)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &Writer{
		ws:     ws,
		level:  level,
		offset: headerSize,
		ids:    make(map[string]struct{}),
	}, nil
}

// Add compresses c into the archive under c.ID.
func (w *Writer) Add(c *geometry.Compressed) error {
	if w.closed {
		return ErrWriterClosed
	}
	if c.ID == "" {
		return errors.New("record has no id")
	}
	if _, ok := w.ids[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, c.ID)
	}

	raw, err := MarshalRecord(c)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", c.ID, err)
	}
	packed, err := w.deflate(raw)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", c.ID, err)
	}
	if _, err := w.ws.Write(packed); err != nil {
		return fmt.Errorf("writing %s: %w", c.ID, err)
	}

	w.entries = append(w.entries, Entry{
		ID:             c.ID,
		Offset:         w.offset,
		CompressedSize: uint32(len(packed)),
		Size:           uint32(len(raw)),
	})
	w.ids[c.ID] = struct{}{}
	w.offset += uint64(len(packed))
	return nil
}

// Len returns the number of records added so far.
func (w *Writer) Len() int {
	return len(w.entries)
}

// Close writes the entry table and header. It closes the file when the
// writer was made by Create.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) finish() error {
	table := new(bytes.Buffer)
	for _, e := range w.entries {
		binary.Write(table, binary.LittleEndian, uint16(len(e.ID)))
		table.WriteString(e.ID)
		binary.Write(table, binary.LittleEndian, e.Offset)
		binary.Write(table, binary.LittleEndian, e.CompressedSize)
		binary.Write(table, binary.LittleEndian, e.Size)
	}

	packed, err := w.deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing entry table: %w", err)
	}
	if err := binary.Write(w.ws, binary.LittleEndian, [2]uint32{uint32(len(packed)), uint32(table.Len())}); err != nil {
		return fmt.Errorf("writing entry table: %w", err)
	}
	if _, err := w.ws.Write(packed); err != nil {
		return fmt.Errorf("writing entry table: %w", err)
	}

	header := Header{
		Version:     archiveVersion,
		EntryCount:  uint32(len(w.entries)),
		TableOffset: w.offset,
	}
	copy(header.Magic[:], archiveMagic)

	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to header: %w", err)
	}
	if err := binary.Write(w.ws, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (w *Writer) deflate(data []byte) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, w.level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Reader reads records from an XGC archive.
type Reader struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	entries map[string]Entry
}

// Open opens the archive file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReader reads the header and entry table of an archive held by r.
func NewReader(r io.ReaderAt) (*Reader, error) {
	a := &Reader{r: r, entries: make(map[string]Entry)}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readEntryTable(); err != nil {
		return nil, fmt.Errorf("reading entry table: %w", err)
	}
	return a, nil
}

// Close closes the file when the reader was made by Open.
func (a *Reader) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns the archive header.
func (a *Reader) Header() Header {
	return a.header
}

func (a *Reader) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != archiveMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != archiveVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Reader) readEntryTable() error {
	var sizes [2]uint32
	sizeReader := io.NewSectionReader(a.r, int64(a.header.TableOffset), 8)
	if err := binary.Read(sizeReader, binary.LittleEndian, &sizes); err != nil {
		return err
	}

	table, err := a.inflate(int64(a.header.TableOffset)+8, sizes[0], sizes[1])
	if err != nil {
		return err
	}

	tr := bytes.NewReader(table)
	for i := uint32(0); i < a.header.EntryCount; i++ {
		var idLen uint16
		if err := binary.Read(tr, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(tr, id); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}

		e := Entry{ID: string(id)}
		for _, v := range []any{&e.Offset, &e.CompressedSize, &e.Size} {
			if err := binary.Read(tr, binary.LittleEndian, v); err != nil {
				return fmt.Errorf("entry %s: %w", e.ID, err)
			}
		}
		a.entries[e.ID] = e
	}
	return nil
}

// inflate decompresses the zlib stream at offset and checks that it holds
// exactly size bytes. The stored size is not trusted for allocation: output
// grows with the data actually inflated, stopping one byte past size.
func (a *Reader) inflate(offset int64, compressedSize, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(io.NewSectionReader(a.r, offset, int64(compressedSize)))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out bytes.Buffer
	out.Grow(int(min(size, maxPrealloc)))
	n, err := out.ReadFrom(io.LimitReader(zr, int64(size)+1))
	if err != nil {
		return nil, err
	}
	if n != int64(size) {
		return nil, fmt.Errorf("%w: stored %d bytes", ErrCorruptEntry, size)
	}
	return out.Bytes(), nil
}

// List returns the IDs of all records, sorted.
func (a *Reader) List() []string {
	ids := make([]string, 0, len(a.entries))
	for id := range a.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entry returns the table entry for id.
func (a *Reader) Entry(id string) (Entry, bool) {
	e, ok := a.entries[id]
	return e, ok
}

// Contains checks if a record exists.
func (a *Reader) Contains(id string) bool {
	_, ok := a.entries[id]
	return ok
}

// Read decodes the record stored under id.
func (a *Reader) Read(id string) (*geometry.Compressed, error) {
	e, ok := a.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	raw, err := a.inflate(int64(e.Offset), e.CompressedSize, e.Size)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	return UnmarshalRecord(raw)
}
