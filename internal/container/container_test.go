package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// utf16Name encodes s as a NUL-terminated UTF-16LE name the way CFBF
// directory entries store them, filling the remainder of a [32]uint16
// array with zeros.
func utf16Name(s string) ([32]uint16, uint16) {
	var out [32]uint16
	for i, r := range s {
		out[i] = uint16(r)
	}
	return out, uint16((len(s) + 1) * 2)
}

// buildMinimal assembles a minimal, well-formed CFBF buffer with one
// storage ("Board6") containing one stream ("Data") whose content is
// streamContent, stored via the regular (non-mini) FAT chain. The layout
// is: sector 0 = FAT, sector 1 = directory, sectors 2.. = stream data.
func buildMinimal(t *testing.T, streamContent []byte) []byte {
	t.Helper()
	const sectorSize = 512

	dataSectors := (len(streamContent) + sectorSize - 1) / sectorSize
	if dataSectors == 0 {
		dataSectors = 1
	}

	var hdr header
	hdr.Signature = magicLE
	hdr.SectorShift = 9
	hdr.MiniSectorShift = 6
	hdr.NumFATSectors = 1
	hdr.FirstDirSector = 1
	hdr.FirstDISAT = sectorEndOfChain
	hdr.FirstMiniFAT = sectorEndOfChain
	for i := range hdr.DISAT {
		hdr.DISAT[i] = sectorFree
	}
	hdr.DISAT[0] = 0

	// FAT sector (sector 0): entry 0 describes the FAT sector itself,
	// entry 1 (directory) is a single-sector chain, entries 2..N-1 chain
	// through the stream's data sectors.
	entriesPerSector := sectorSize / 4
	fat := make([]uint32, entriesPerSector)
	for i := range fat {
		fat[i] = sectorFree
	}
	fat[0] = sectorFAT
	fat[1] = sectorEndOfChain
	for i := 0; i < dataSectors; i++ {
		sector := 2 + i
		if i == dataSectors-1 {
			fat[sector] = sectorEndOfChain
		} else {
			fat[sector] = uint32(sector + 1)
		}
	}

	rootName, rootLen := utf16Name("Root Entry")
	root := dirEntry{
		Name: rootName, NameLen: rootLen, ObjectType: objectTypeRootStorage,
		LeftSibling: sectorFree, RightSibling: sectorFree, Child: 1,
		StartSector: sectorEndOfChain,
	}
	storageName, storageLen := utf16Name("Board6")
	storage := dirEntry{
		Name: storageName, NameLen: storageLen, ObjectType: objectTypeStorage,
		LeftSibling: sectorFree, RightSibling: sectorFree, Child: 2,
		StartSector: sectorEndOfChain,
	}
	streamName, streamLen := utf16Name("Data")
	stream := dirEntry{
		Name: streamName, NameLen: streamLen, ObjectType: objectTypeStream,
		LeftSibling: sectorFree, RightSibling: sectorFree, Child: sectorFree,
		StartSector: 2, StreamSize: uint64(len(streamContent)),
	}
	unused := dirEntry{ObjectType: 0, LeftSibling: sectorFree, RightSibling: sectorFree, Child: sectorFree}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	for buf.Len() < sectorSize {
		buf.WriteByte(0)
	}
	for _, v := range fat {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	for _, e := range []dirEntry{root, storage, stream, unused} {
		binary.Write(&buf, binary.LittleEndian, &e)
	}
	for i := 0; i < dataSectors; i++ {
		start := i * sectorSize
		end := start + sectorSize
		chunk := make([]byte, sectorSize)
		if start < len(streamContent) {
			copy(chunk, streamContent[start:min(end, len(streamContent))])
		}
		buf.Write(chunk)
	}
	return buf.Bytes()
}

func TestOpenBytes_ReadsNestedStream(t *testing.T) {
	content := append([]byte("HELLOCFBF"), bytes.Repeat([]byte{0xAB}, 4100)...)
	data := buildMinimal(t, content)

	cf, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer cf.Close()

	got, ok := cf.Stream("Board6/Data")
	if !ok {
		t.Fatalf("Stream(Board6/Data) not found among %v", cf.Streams())
	}
	if !bytes.HasPrefix(got, content[:9]) {
		t.Fatalf("stream content prefix = %q, want %q", got[:9], content[:9])
	}
}

func TestOpenBytes_MissingStreamIsNonFatal(t *testing.T) {
	data := buildMinimal(t, bytes.Repeat([]byte{0x01}, 4096))
	cf, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer cf.Close()

	if _, ok := cf.Stream("Nonexistent6/Data"); ok {
		t.Fatalf("expected missing stream to report ok=false")
	}
	_, err = cf.StreamOrEmpty("Nonexistent6/Data")
	var sue *StreamUnreadableError
	if !errors.As(err, &sue) {
		t.Fatalf("StreamOrEmpty error = %v, want *StreamUnreadableError", err)
	}
}

func TestOpen_TooShortBufferIsUnreadable(t *testing.T) {
	_, err := OpenBytes([]byte{1, 2, 3})
	if !errors.Is(err, ErrContainerUnreadable) {
		t.Fatalf("err = %v, want ErrContainerUnreadable", err)
	}
}

func TestOpen_BadMagicIsUnreadable(t *testing.T) {
	buf := make([]byte, headerSize)
	_, err := OpenBytes(buf)
	if !errors.Is(err, ErrContainerUnreadable) {
		t.Fatalf("err = %v, want ErrContainerUnreadable", err)
	}
}

// TestReadChain_CyclicFATTerminates corrupts the data chain so it points
// back on itself; readChain's seen-set must stop the walk rather than
// loop forever (this test having any result at all, pass or fail, proves
// it terminated — go test's own deadline backstops a true infinite loop).
func TestReadChain_CyclicFATTerminates(t *testing.T) {
	data := buildMinimal(t, bytes.Repeat([]byte{0x02}, 4200))
	// The FAT sector is sector 0, at file offset headerSize+0*sectorSize.
	// Overwrite entry 2's pointer (offset 2*4 within the FAT sector) to
	// point back at sector 2 itself, turning the stream's chain cyclic.
	const sectorSize = 512
	fatOffset := headerSize + 0*sectorSize
	binary.LittleEndian.PutUint32(data[fatOffset+2*4:], 2)

	cf, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer cf.Close()

	got, ok := cf.Stream("Board6/Data")
	if !ok {
		t.Fatalf("expected stream to still be found despite the cycle")
	}
	if len(got) == 0 {
		t.Fatalf("expected at least one sector's worth of data before the cycle was caught")
	}
}
