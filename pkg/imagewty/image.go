// Package imagewty implements reading and decrypting of Allwinner IMAGEWTY
// firmware container files, as produced by the DragonEx/LiveSuit packing
// workflow.
//
// The format is undocumented. An image starts with a 1024-byte header,
// followed by one 1024-byte header per contained file, followed by the file
// payloads padded out to 512 bytes each. Two header layouts exist (v1 and
// v3), discriminated by a version word. The whole image may additionally be
// wrapped in an obfuscating RC6 envelope with three fixed, domain-separated
// keys; whether the envelope is present is detected from the magic string
// alone, before any decryption.
//
// Reference behavior was established against images handled by LiveSuit,
// PhoenixSuit and imgRePacker.
package imagewty

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
)

var (
	// ErrBadMagic means the (decrypted) header magic is not IMAGEWTY.
	ErrBadMagic = errors.New("not an IMAGEWTY file")
	// ErrUnsupportedVersion means the header version is neither v1 nor v3.
	ErrUnsupportedVersion = errors.New("unsupported header version")
	// ErrMalformedHeader means the buffer is too small for the headers it
	// claims, or header fields are obviously invalid.
	ErrMalformedHeader = errors.New("malformed image header")
	// ErrCorruptFileTable means a file-table entry points outside the image.
	ErrCorruptFileTable = errors.New("corrupt file table")
)

// FileEntry describes one logical file inside an image. Offset and
// OriginalLength locate the payload inside the image buffer; the entry does
// not own the bytes and must not outlive the Image it came from.
type FileEntry struct {
	Filename string
	MainType string
	SubType  string

	// StoredLength is the 512-byte-aligned on-disk size.
	StoredLength uint32
	// OriginalLength is the logical payload size.
	OriginalLength uint32
	// Offset is the absolute byte position from the start of the image.
	Offset uint32
}

// LoadOptions control how an image buffer is loaded.
type LoadOptions struct {
	// Decrypt removes the RC6 envelope in place when the image turns out
	// to be encrypted. When false, an encrypted image will fail to load
	// with ErrBadMagic.
	Decrypt bool
}

// Image is a fully loaded IMAGEWTY image. The backing buffer is decrypted
// at most once, during Load; afterwards an Image is read-only and safe to
// share between goroutines.
type Image struct {
	buf    []byte
	header *ImageHeader
	files  []FileEntry

	encrypted bool
}

// Load parses (and, per opts, decrypts) a complete image buffer. The buffer
// is modified in place when the envelope is removed. On error no Image is
// returned; partially decoded state is never exposed.
func Load(buf []byte, opts LoadOptions) (*Image, error) {
	if len(buf) < HeaderLen {
		return nil, fmt.Errorf("%w: image shorter than one header (%d bytes)", ErrMalformedHeader, len(buf))
	}

	cs, err := NewCryptoSuite()
	if err != nil {
		return nil, err
	}

	// Encryption detection must happen before anything touches the buffer.
	encrypted := !bytes.Equal(buf[:MagicLen], []byte(Magic))

	if encrypted && opts.Decrypt {
		DecryptInPlace(cs.Header, buf[:HeaderLen])
	}

	hdr, err := ParseImageHeader(buf[:HeaderLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if !bytes.Equal(hdr.Magic[:], []byte(Magic)) {
		return nil, ErrBadMagic
	}
	if hdr.HeaderVersion != HeaderVersionV1 && hdr.HeaderVersion != HeaderVersionV3 {
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedVersion, hdr.HeaderVersion)
	}

	numFiles := int(hdr.NumFiles)
	tableEnd := HeaderLen + numFiles*FileHeaderLen
	if len(buf) < tableEnd {
		return nil, fmt.Errorf("%w: file table for %d files extends past end of image", ErrMalformedHeader, numFiles)
	}
	if int(hdr.ImageSize) != len(buf) {
		return nil, fmt.Errorf("%w: image_size %d does not match buffer size %d", ErrMalformedHeader, hdr.ImageSize, len(buf))
	}

	if encrypted && opts.Decrypt {
		DecryptInPlace(cs.FileTable, buf[HeaderLen:tableEnd])
	}

	// File contents decrypt in table order. stored_length is only legible
	// now that the table itself is plaintext; the cursor advances by
	// stored_length regardless of whether any blocks were decrypted, so it
	// keeps tracking the on-disk layout.
	var errs error
	files := make([]FileEntry, 0, numFiles)
	cursor := tableEnd
	for i := 0; i < numFiles; i++ {
		fh, err := ParseFileHeader(buf[HeaderLen+i*FileHeaderLen:][:FileHeaderLen], hdr.HeaderVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptFileTable, i, err)
		}

		end := cursor + int(fh.StoredLength)
		if encrypted && opts.Decrypt {
			if end > len(buf) {
				errs = multierror.Append(errs, fmt.Errorf("entry %d: stored data [%d, %d) extends past end of image", i, cursor, end))
			} else {
				DecryptInPlace(cs.FileContent, buf[cursor:end])
			}
		}
		cursor = end

		entry := FileEntry{
			Filename:       trimCString(fh.Filename[:]),
			MainType:       trimPadded(fh.MainType[:]),
			SubType:        trimPadded(fh.SubType[:]),
			StoredLength:   fh.StoredLength,
			OriginalLength: fh.OriginalLength,
			Offset:         fh.Offset,
		}
		if int64(entry.Offset)+int64(entry.OriginalLength) > int64(len(buf)) {
			errs = multierror.Append(errs, fmt.Errorf("entry %d (%s): data [%d, %d) extends past end of image",
				i, entry.Filename, entry.Offset, int64(entry.Offset)+int64(entry.OriginalLength)))
		}
		files = append(files, entry)
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFileTable, errs)
	}

	glog.Infof("Loaded IMAGEWTY v%d image: %d files, %d bytes, encrypted=%v",
		hdr.HeaderVersion>>8, numFiles, len(buf), encrypted)

	return &Image{
		buf:       buf,
		header:    hdr,
		files:     files,
		encrypted: encrypted,
	}, nil
}

// Header returns the parsed image header.
func (im *Image) Header() *ImageHeader { return im.header }

// Files returns all file entries in table order.
func (im *Image) Files() []FileEntry { return im.files }

// NumFiles returns the number of files in the image.
func (im *Image) NumFiles() int { return len(im.files) }

// Encrypted reports whether the source buffer carried the RC6 envelope.
func (im *Image) Encrypted() bool { return im.encrypted }

// Size returns the image size in bytes.
func (im *Image) Size() int { return len(im.buf) }

// PID returns the USB peripheral ID recorded in the header.
func (im *Image) PID() uint32 { return im.header.PID }

// VID returns the USB vendor ID recorded in the header.
func (im *Image) VID() uint32 { return im.header.VID }

// HardwareID returns the hardware ID recorded in the header.
func (im *Image) HardwareID() uint32 { return im.header.HardwareID }

// FirmwareID returns the firmware ID recorded in the header.
func (im *Image) FirmwareID() uint32 { return im.header.FirmwareID }

// FindByFilename returns the entry with an exactly matching filename, or
// nil when the image contains no such file.
func (im *Image) FindByFilename(name string) *FileEntry {
	for i := range im.files {
		if im.files[i].Filename == name {
			return &im.files[i]
		}
	}
	return nil
}

// FindBySubtype returns all entries with the given subtype, in table order.
func (im *Image) FindBySubtype(subtype string) []*FileEntry {
	var out []*FileEntry
	for i := range im.files {
		if im.files[i].SubType == subtype {
			out = append(out, &im.files[i])
		}
	}
	return out
}

// FileBytes returns the payload of an entry: exactly OriginalLength bytes,
// without the 512-byte alignment tail. The slice aliases the image buffer.
func (im *Image) FileBytes(e *FileEntry) []byte {
	return im.buf[e.Offset : e.Offset+e.OriginalLength]
}

// FileHeaderBytes returns the raw 1024-byte file-table slot for entry i,
// as stored on disk (decrypted). Used for the .hdr sidecars in UNIMG
// output.
func (im *Image) FileHeaderBytes(i int) []byte {
	return im.buf[HeaderLen+i*FileHeaderLen:][:FileHeaderLen]
}

// WriteDecrypted writes the image as plaintext: for an image loaded from
// plaintext this is a verbatim copy, for a decrypted one it is the
// in-memory buffer with the envelope removed. The output is never
// re-encrypted.
func (im *Image) WriteDecrypted(w io.Writer) error {
	if _, err := w.Write(im.buf); err != nil {
		return fmt.Errorf("could not write image: %w", err)
	}
	return nil
}

// trimCString cuts at the first NUL and strips trailing whitespace, like
// the filename fields are written by the packer.
func trimCString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " \t\r\n\v\f")
}

// trimPadded strips trailing NULs and whitespace from a fixed-width field.
func trimPadded(b []byte) string {
	return strings.TrimRight(string(b), "\x00 \t\r\n\v\f")
}
