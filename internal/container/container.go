// Package container opens Altium's OLE compound-document container files
// and returns the raw byte buffer for each named stream (spec §4.1).
//
// The contract and failure-handling shape (mmap the file, never panic on
// malformed input, return partial bytes instead of erroring) follows
// saferwall/pe's file.go: pe.New/pe.NewBytes memory-map or wrap a buffer,
// and helper.go's ReadUint*/structUnpack helpers never panic on
// out-of-range offsets, they return ErrOutsideBoundary.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Errors returned by Open/Stream, per spec §4.1.
var (
	// ErrContainerUnreadable is returned when the file is not a valid
	// compound document.
	ErrContainerUnreadable = errors.New("container: not a valid compound document")
)

// StreamUnreadableError wraps a stream-level read failure with its path.
type StreamUnreadableError struct {
	Path string
	Err  error
}

func (e *StreamUnreadableError) Error() string {
	return fmt.Sprintf("container: stream %q unreadable: %v", e.Path, e.Err)
}

func (e *StreamUnreadableError) Unwrap() error { return e.Err }

const (
	sectorFree    = 0xFFFFFFFF
	sectorEndOfChain = 0xFFFFFFFE
	sectorFAT     = 0xFFFFFFFD
	sectorDISAT   = 0xFFFFFFFC

	headerSize = 512
	magicLE    = uint64(0xE11AB1A1E011CFD0)

	dirEntrySize = 128

	objectTypeStorage    = 1
	objectTypeStream     = 2
	objectTypeRootStorage = 5

	miniStreamCutoff = 4096
)

// header is the fixed 512-byte CFBF header.
type header struct {
	Signature        uint64
	CLSID            [16]byte
	MinorVersion     uint16
	MajorVersion     uint16
	ByteOrder        uint16
	SectorShift      uint16
	MiniSectorShift  uint16
	Reserved         [6]byte
	NumDirSectors    uint32
	NumFATSectors    uint32
	FirstDirSector   uint32
	TransactionSig   uint32
	MiniStreamCutoff uint32
	FirstMiniFAT     uint32
	NumMiniFATSectors uint32
	FirstDISAT       uint32
	NumDISATSectors  uint32
	DISAT            [109]uint32
}

// dirEntry is one 128-byte directory entry.
type dirEntry struct {
	Name          [32]uint16
	NameLen       uint16
	ObjectType    uint8
	Color         uint8
	LeftSibling   uint32
	RightSibling  uint32
	Child         uint32
	CLSID         [16]byte
	StateBits     uint32
	CreateTime    uint64
	ModifyTime    uint64
	StartSector   uint32
	StreamSize    uint64
}

// Name returns the UTF-16-decoded, NUL-trimmed entry name.
func (d *dirEntry) name() string {
	n := int(d.NameLen) / 2
	if n > 0 {
		n-- // NameLen includes the trailing NUL
	}
	if n < 0 || n > len(d.Name) {
		return ""
	}
	buf := make([]uint16, n)
	copy(buf, d.Name[:n])
	return string(utf16Decode(buf))
}

func utf16Decode(u []uint16) []rune {
	out := make([]rune, 0, len(u))
	for i := 0; i < len(u); i++ {
		r := rune(u[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u) {
			r2 := rune(u[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((r-0xD800)<<10|(r2-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// File is an open compound-document container.
type File struct {
	data       []byte
	f          *os.File
	mm         mmap.MMap
	hdr        header
	sectorSize int
	miniSize   int
	fat        []uint32
	miniFAT    []uint32
	entries    []dirEntry
	miniStream []byte
}

// Open memory-maps path and parses its compound-document structure.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerUnreadable, err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrContainerUnreadable, err)
	}
	cf := &File{data: data, f: f, mm: data}
	if err := cf.parse(); err != nil {
		cf.Close()
		return nil, err
	}
	return cf, nil
}

// OpenBytes parses an in-memory compound-document buffer (e.g. received
// over a wire protocol rather than read from disk).
func OpenBytes(data []byte) (*File, error) {
	cf := &File{data: data}
	if err := cf.parse(); err != nil {
		return nil, err
	}
	return cf, nil
}

// Close unmaps the underlying file, if any.
func (f *File) Close() error {
	if f.mm != nil {
		return f.mm.Unmap()
	}
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *File) parse() error {
	if len(f.data) < headerSize {
		return ErrContainerUnreadable
	}
	r := bytes.NewReader(f.data[:headerSize])
	if err := binary.Read(r, binary.LittleEndian, &f.hdr); err != nil {
		return fmt.Errorf("%w: %v", ErrContainerUnreadable, err)
	}
	if f.hdr.Signature != magicLE {
		return ErrContainerUnreadable
	}
	f.sectorSize = 1 << f.hdr.SectorShift
	f.miniSize = 1 << f.hdr.MiniSectorShift
	if f.sectorSize < headerSize {
		f.sectorSize = headerSize
	}

	if err := f.readFAT(); err != nil {
		return fmt.Errorf("%w: %v", ErrContainerUnreadable, err)
	}
	if err := f.readDirectory(); err != nil {
		return fmt.Errorf("%w: %v", ErrContainerUnreadable, err)
	}
	f.readMiniFAT()
	f.readMiniStream()
	return nil
}

func (f *File) sectorOffset(sector uint32) int {
	return headerSize + int(sector)*f.sectorSize
}

func (f *File) sectorData(sector uint32) []byte {
	off := f.sectorOffset(sector)
	if off < 0 || off+f.sectorSize > len(f.data) {
		return nil
	}
	return f.data[off : off+f.sectorSize]
}

// readFAT builds the full FAT array from the header's 109 DISAT entries
// plus any DISAT sectors (not expected for Altium-sized files, but
// followed for correctness).
func (f *File) readFAT() error {
	var fatSectors []uint32
	for _, s := range f.hdr.DISAT {
		if s != sectorFree {
			fatSectors = append(fatSectors, s)
		}
	}

	next := f.hdr.FirstDISAT
	for next != sectorEndOfChain && next != sectorFree && len(fatSectors) < int(f.hdr.NumFATSectors)+109 {
		sec := f.sectorData(next)
		if sec == nil {
			break
		}
		n := f.sectorSize/4 - 1
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint32(sec[i*4:])
			if v != sectorFree {
				fatSectors = append(fatSectors, v)
			}
		}
		next = binary.LittleEndian.Uint32(sec[n*4:])
	}

	entriesPerSector := f.sectorSize / 4
	f.fat = make([]uint32, 0, len(fatSectors)*entriesPerSector)
	for _, sec := range fatSectors {
		data := f.sectorData(sec)
		if data == nil {
			continue
		}
		for i := 0; i < entriesPerSector; i++ {
			f.fat = append(f.fat, binary.LittleEndian.Uint32(data[i*4:]))
		}
	}
	return nil
}

// readChain follows a FAT (or mini-FAT) sector chain starting at start,
// concatenating sector payloads. Chains are bounded by a seen-set so a
// corrupt cyclic chain terminates instead of looping forever.
func (f *File) readChain(start uint32, useMini bool) []byte {
	fat := f.fat
	if useMini {
		fat = f.miniFAT
	}
	var out bytes.Buffer
	seen := make(map[uint32]bool)
	sector := start
	for sector != sectorEndOfChain && sector != sectorFree && int(sector) < len(fat) {
		if seen[sector] {
			break // cyclic chain, stop rather than loop forever
		}
		seen[sector] = true
		var data []byte
		if useMini {
			data = f.miniSectorData(sector)
		} else {
			data = f.sectorData(sector)
		}
		if data == nil {
			break
		}
		out.Write(data)
		sector = fat[sector]
	}
	return out.Bytes()
}

func (f *File) readDirectory() error {
	dirData := f.readChain(f.hdr.FirstDirSector, false)
	n := len(dirData) / dirEntrySize
	f.entries = make([]dirEntry, 0, n)
	for i := 0; i < n; i++ {
		chunk := dirData[i*dirEntrySize : (i+1)*dirEntrySize]
		var e dirEntry
		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, &e); err != nil {
			continue
		}
		f.entries = append(f.entries, e)
	}
	return nil
}

// buildPaths walks the storage red-black tree from the root entry (index
// 0), computing the hierarchical "Storage/Stream" path of every entry.
func (f *File) buildPaths() map[int]string {
	paths := make(map[int]string)
	if len(f.entries) == 0 {
		return paths
	}
	var walk func(idx int, prefix string)
	var walkSiblings func(idx int, prefix string)

	walkSiblings = func(idx int, prefix string) {
		if idx < 0 || idx >= len(f.entries) || uint32(idx) == sectorFree {
			return
		}
		e := &f.entries[idx]
		if e.LeftSibling != sectorFree {
			walkSiblings(int(e.LeftSibling), prefix)
		}
		walk(idx, prefix)
		if e.RightSibling != sectorFree {
			walkSiblings(int(e.RightSibling), prefix)
		}
	}

	walk = func(idx int, prefix string) {
		if idx < 0 || idx >= len(f.entries) {
			return
		}
		e := &f.entries[idx]
		name := e.name()
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		paths[idx] = full
		if e.ObjectType == objectTypeStorage || e.ObjectType == objectTypeRootStorage {
			if e.Child != sectorFree {
				walkSiblings(int(e.Child), full)
			}
		}
	}

	root := &f.entries[0]
	if root.Child != sectorFree {
		walkSiblings(int(root.Child), "")
	}
	return paths
}

func (f *File) readMiniFAT() {
	if f.hdr.FirstMiniFAT == sectorEndOfChain || f.hdr.FirstMiniFAT == sectorFree {
		return
	}
	data := f.readChain(f.hdr.FirstMiniFAT, false)
	n := len(data) / 4
	f.miniFAT = make([]uint32, n)
	for i := 0; i < n; i++ {
		f.miniFAT[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
}

func (f *File) readMiniStream() {
	if len(f.entries) == 0 {
		return
	}
	root := f.entries[0]
	f.miniStream = f.readChain(root.StartSector, false)
}

func (f *File) miniSectorData(sector uint32) []byte {
	off := int(sector) * f.miniSize
	if off < 0 || off+f.miniSize > len(f.miniStream) {
		return nil
	}
	return f.miniStream[off : off+f.miniSize]
}

// Streams returns the hierarchical paths ("Board6/Data") of every
// stream-type directory entry. Storage ("folder") entries are traversed
// but not themselves returned.
func (f *File) Streams() []string {
	paths := f.buildPaths()
	var out []string
	for i := range f.entries {
		if f.entries[i].ObjectType != objectTypeStream {
			continue
		}
		if p, ok := paths[i]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Stream returns the raw bytes of the stream at the given hierarchical
// path (e.g. "Board6/Data"). Missing streams are non-fatal per spec §4.1:
// callers get (nil, false) and should treat the stream as an empty record
// set.
func (f *File) Stream(path string) ([]byte, bool) {
	paths := f.buildPaths()
	for i := range f.entries {
		e := &f.entries[i]
		if e.ObjectType != objectTypeStream {
			continue
		}
		if p, ok := paths[i]; !ok || p != path {
			continue
		}
		if e.StreamSize < miniStreamCutoff {
			return f.readChain(e.StartSector, true), true
		}
		return f.readChain(e.StartSector, false), true
	}
	return nil, false
}

// StreamOrEmpty returns the named stream's bytes, or a nil slice and a
// *StreamUnreadableError when the stream is missing.
func (f *File) StreamOrEmpty(name string) ([]byte, error) {
	data, ok := f.Stream(name)
	if !ok {
		return nil, &StreamUnreadableError{Path: name, Err: errors.New("stream not present")}
	}
	return data, nil
}

// ExpectedStreams lists the top-level stream paths the importer looks
// for (spec §4.1). Missing ones are non-fatal.
var ExpectedStreams = []string{
	"Board6/Data",
	"Components6/Data",
	"Nets6/Data",
	"Tracks6/Data",
	"Vias6/Data",
	"Pads6/Data",
	"Rules6/Data",
	"Polygons6/Data",
	"Regions6/Data",
}
