package imagewty

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// Magic is the 8-byte signature at the start of a plaintext image.
	Magic = "IMAGEWTY"
	// MagicLen is the length of the magic string.
	MagicLen = 8

	// HeaderVersionV1 and HeaderVersionV3 are the only recognized header
	// layouts.
	HeaderVersionV1 = 0x0100
	HeaderVersionV3 = 0x0300

	// FormatVersion is the conventional format version stamped into the
	// header by the DragonEx packer.
	FormatVersion = 0x100234

	// HeaderLen is the on-disk size of the image header, padding included.
	HeaderLen = 1024
	// FileHeaderLen is the on-disk size of each file header.
	FileHeaderLen = 1024

	// MainTypeLen, SubTypeLen and FilenameLen are the fixed field widths
	// inside a file header.
	MainTypeLen = 8
	SubTypeLen  = 16
	FilenameLen = 256

	// StoredAlign is the payload alignment: stored_length is always
	// original_length rounded up to this.
	StoredAlign = 512
)

// ImageHeader is the parsed image header. The on-disk layout differs
// between v1 and v3 (v3 carries an extra leading word before the IDs);
// HeaderVersion discriminates which tail was read.
type ImageHeader struct {
	Magic           [MagicLen]byte
	HeaderVersion   uint32
	HeaderSize      uint32
	RAMBase         uint32
	Version         uint32
	ImageSize       uint32
	ImageHeaderSize uint32

	// Unknown is only present on disk for v3 headers.
	Unknown uint32

	PID        uint32
	VID        uint32
	HardwareID uint32
	FirmwareID uint32
	Val1       uint32
	Val1024    uint32
	NumFiles   uint32
	Val1024x2  uint32
	Val0       [4]uint32
}

type imageHeaderPrefix struct {
	Magic           [MagicLen]byte
	HeaderVersion   uint32
	HeaderSize      uint32
	RAMBase         uint32
	Version         uint32
	ImageSize       uint32
	ImageHeaderSize uint32
}

type imageHeaderTail struct {
	PID        uint32
	VID        uint32
	HardwareID uint32
	FirmwareID uint32
	Val1       uint32
	Val1024    uint32
	NumFiles   uint32
	Val1024x2  uint32
	Val0       [4]uint32
}

// ParseImageHeader decodes the 1024-byte header region. The magic and
// header version are not validated here; Load does that.
func ParseImageHeader(b []byte) (*ImageHeader, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("header region too short (%d bytes)", len(b))
	}
	r := bytes.NewReader(b)

	var prefix imageHeaderPrefix
	if err := binary.Read(r, binary.LittleEndian, &prefix); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	hdr := &ImageHeader{
		Magic:           prefix.Magic,
		HeaderVersion:   prefix.HeaderVersion,
		HeaderSize:      prefix.HeaderSize,
		RAMBase:         prefix.RAMBase,
		Version:         prefix.Version,
		ImageSize:       prefix.ImageSize,
		ImageHeaderSize: prefix.ImageHeaderSize,
	}

	if prefix.HeaderVersion == HeaderVersionV3 {
		if err := binary.Read(r, binary.LittleEndian, &hdr.Unknown); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	var tail imageHeaderTail
	if err := binary.Read(r, binary.LittleEndian, &tail); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	hdr.PID = tail.PID
	hdr.VID = tail.VID
	hdr.HardwareID = tail.HardwareID
	hdr.FirmwareID = tail.FirmwareID
	hdr.Val1 = tail.Val1
	hdr.Val1024 = tail.Val1024
	hdr.NumFiles = tail.NumFiles
	hdr.Val1024x2 = tail.Val1024x2
	hdr.Val0 = tail.Val0

	return hdr, nil
}

// Encode serializes the header into its 1024-byte on-disk form.
func (h *ImageHeader) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	prefix := imageHeaderPrefix{
		Magic:           h.Magic,
		HeaderVersion:   h.HeaderVersion,
		HeaderSize:      h.HeaderSize,
		RAMBase:         h.RAMBase,
		Version:         h.Version,
		ImageSize:       h.ImageSize,
		ImageHeaderSize: h.ImageHeaderSize,
	}
	if err := binary.Write(buf, binary.LittleEndian, prefix); err != nil {
		return nil, fmt.Errorf("could not serialize header: %w", err)
	}
	if h.HeaderVersion == HeaderVersionV3 {
		if err := binary.Write(buf, binary.LittleEndian, h.Unknown); err != nil {
			return nil, fmt.Errorf("could not serialize header: %w", err)
		}
	}
	tail := imageHeaderTail{
		PID:        h.PID,
		VID:        h.VID,
		HardwareID: h.HardwareID,
		FirmwareID: h.FirmwareID,
		Val1:       h.Val1,
		Val1024:    h.Val1024,
		NumFiles:   h.NumFiles,
		Val1024x2:  h.Val1024x2,
		Val0:       h.Val0,
	}
	if err := binary.Write(buf, binary.LittleEndian, tail); err != nil {
		return nil, fmt.Errorf("could not serialize header: %w", err)
	}

	buf.Write(bytes.Repeat([]byte{0}, HeaderLen-buf.Len()))
	return buf.Bytes(), nil
}

// FileHeader is a parsed file-table entry. Like ImageHeader, the on-disk
// field order is version-dependent; the parsed form is flat.
type FileHeader struct {
	FilenameLen     uint32
	TotalHeaderSize uint32
	MainType        [MainTypeLen]byte
	SubType         [SubTypeLen]byte

	Unknown        uint32
	Filename       [FilenameLen]byte
	StoredLength   uint32
	OriginalLength uint32
	Offset         uint32
}

type fileHeaderCommon struct {
	FilenameLen     uint32
	TotalHeaderSize uint32
	MainType        [MainTypeLen]byte
	SubType         [SubTypeLen]byte
}

type fileHeaderTailV1 struct {
	Unknown3       uint32
	StoredLength   uint32
	OriginalLength uint32
	Offset         uint32
	Unknown        uint32
	Filename       [FilenameLen]byte
}

type fileHeaderTailV3 struct {
	Unknown0       uint32
	Filename       [FilenameLen]byte
	StoredLength   uint32
	Pad1           uint32
	OriginalLength uint32
	Pad2           uint32
	Offset         uint32
}

// ParseFileHeader decodes one 1024-byte file-table slot using the layout
// selected by headerVersion.
func ParseFileHeader(b []byte, headerVersion uint32) (*FileHeader, error) {
	if len(b) < FileHeaderLen {
		return nil, fmt.Errorf("file header region too short (%d bytes)", len(b))
	}
	r := bytes.NewReader(b)

	var common fileHeaderCommon
	if err := binary.Read(r, binary.LittleEndian, &common); err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	fh := &FileHeader{
		FilenameLen:     common.FilenameLen,
		TotalHeaderSize: common.TotalHeaderSize,
		MainType:        common.MainType,
		SubType:         common.SubType,
	}

	if headerVersion == HeaderVersionV3 {
		var tail fileHeaderTailV3
		if err := binary.Read(r, binary.LittleEndian, &tail); err != nil {
			return nil, fmt.Errorf("failed to read file header: %w", err)
		}
		fh.Unknown = tail.Unknown0
		fh.Filename = tail.Filename
		fh.StoredLength = tail.StoredLength
		fh.OriginalLength = tail.OriginalLength
		fh.Offset = tail.Offset
	} else {
		var tail fileHeaderTailV1
		if err := binary.Read(r, binary.LittleEndian, &tail); err != nil {
			return nil, fmt.Errorf("failed to read file header: %w", err)
		}
		fh.Unknown = tail.Unknown
		fh.Filename = tail.Filename
		fh.StoredLength = tail.StoredLength
		fh.OriginalLength = tail.OriginalLength
		fh.Offset = tail.Offset
	}

	return fh, nil
}

// Encode serializes the file header into its 1024-byte on-disk form using
// the layout selected by headerVersion.
func (fh *FileHeader) Encode(headerVersion uint32) ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	common := fileHeaderCommon{
		FilenameLen:     fh.FilenameLen,
		TotalHeaderSize: fh.TotalHeaderSize,
		MainType:        fh.MainType,
		SubType:         fh.SubType,
	}
	if err := binary.Write(buf, binary.LittleEndian, common); err != nil {
		return nil, fmt.Errorf("could not serialize file header: %w", err)
	}

	var tail any
	if headerVersion == HeaderVersionV3 {
		tail = fileHeaderTailV3{
			Unknown0:       fh.Unknown,
			Filename:       fh.Filename,
			StoredLength:   fh.StoredLength,
			OriginalLength: fh.OriginalLength,
			Offset:         fh.Offset,
		}
	} else {
		tail = fileHeaderTailV1{
			Unknown3:       0,
			StoredLength:   fh.StoredLength,
			OriginalLength: fh.OriginalLength,
			Offset:         fh.Offset,
			Unknown:        fh.Unknown,
			Filename:       fh.Filename,
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, tail); err != nil {
		return nil, fmt.Errorf("could not serialize file header: %w", err)
	}

	buf.Write(bytes.Repeat([]byte{0}, FileHeaderLen-buf.Len()))
	return buf.Bytes(), nil
}

// StoredSize rounds a payload length up to the 512-byte storage alignment.
func StoredSize(originalLength uint32) uint32 {
	return (originalLength + StoredAlign - 1) &^ (StoredAlign - 1)
}
