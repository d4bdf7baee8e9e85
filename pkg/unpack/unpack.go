// Package unpack writes the contents of a loaded IMAGEWTY image to disk
// and regenerates the image.cfg needed to repack it.
package unpack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/openixkit/openiximg/pkg/cfg"
	"github.com/openixkit/openiximg/pkg/imagewty"
)

// ErrNotImplemented is returned by Pack. Repacking needs the producer's
// encrypt-then-align ordering and per-file cipher selection, neither of
// which has been confirmed against a known-good image yet.
var ErrNotImplemented = errors.New("packing is not implemented")

// Format selects the on-disk layout of an unpacked image.
type Format int

const (
	// UNIMG names output files <maintype>_<subtype> and writes a .hdr
	// sidecar with the raw file header next to each payload.
	UNIMG Format = iota
	// IMGRepacker reproduces the embedded directory tree under the
	// original filenames, compatible with the imgRePacker tool.
	IMGRepacker
)

func (f Format) String() string {
	switch f {
	case UNIMG:
		return "unimg"
	case IMGRepacker:
		return "imgrepacker"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(f))
	}
}

// Unpacker extracts a loaded image into a directory.
type Unpacker struct {
	// Format selects the output layout.
	Format Format
	// ImagePath is recorded in the generated image.cfg.
	ImagePath string
}

// Unpack writes every file of img into outDir, then emits image.cfg. An
// existing outDir is removed first so the extraction is always clean. Any
// single write failure aborts the extraction.
func (u *Unpacker) Unpack(img *imagewty.Image, outDir string) error {
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("could not remove existing output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	fileList := &cfg.Group{Name: "FILELIST"}

	for i, e := range img.Files() {
		var catalogName string

		switch u.Format {
		case IMGRepacker:
			glog.Infof("Extracting %s ...", e.Filename)

			catalogName = strings.TrimPrefix(e.Filename, "/")
			path := filepath.Join(outDir, filepath.FromSlash(catalogName))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("could not create directory for %s: %w", e.Filename, err)
			}
			if err := os.WriteFile(path, img.FileBytes(&e), 0666); err != nil {
				return fmt.Errorf("could not write %s: %w", e.Filename, err)
			}
		default:
			glog.Infof("Extracting: %s %s (%d, %d) ...", e.MainType, e.SubType, e.OriginalLength, e.StoredLength)

			catalogName = e.MainType + "_" + e.SubType
			hdrPath := filepath.Join(outDir, catalogName+".hdr")
			if err := os.WriteFile(hdrPath, img.FileHeaderBytes(i), 0666); err != nil {
				return fmt.Errorf("could not write %s: %w", hdrPath, err)
			}
			contPath := filepath.Join(outDir, catalogName)
			if err := os.WriteFile(contPath, img.FileBytes(&e), 0666); err != nil {
				return fmt.Errorf("could not write %s: %w", contPath, err)
			}
		}

		fileList.Variables = append(fileList.Variables, &cfg.Variable{
			Kind: cfg.ListItem,
			Items: []*cfg.Variable{
				{Name: "filename", Kind: cfg.String, Str: catalogName},
				{Name: "maintype", Kind: cfg.String, Str: e.MainType},
				{Name: "subtype", Kind: cfg.String, Str: e.SubType},
			},
		})
	}

	if err := u.writeCatalog(img, fileList, outDir); err != nil {
		return err
	}

	glog.Infof("Unpacked %d files to %s", img.NumFiles(), outDir)
	return nil
}

func (u *Unpacker) writeCatalog(img *imagewty.Image, fileList *cfg.Group, outDir string) error {
	encrypt := "0"
	if img.Encrypted() {
		encrypt = "1"
	}

	c := cfg.New()
	c.AddGroup(&cfg.Group{
		Name: "DIR_DEF",
		Variables: []*cfg.Variable{
			{Name: "INPUT_DIR", Kind: cfg.String, Str: "../"},
		},
	})
	c.AddGroup(fileList)
	c.AddGroup(&cfg.Group{
		Name: "IMAGE_CFG",
		Variables: []*cfg.Variable{
			{Name: "version", Kind: cfg.Number, Num: img.Header().Version},
			{Name: "pid", Kind: cfg.Number, Num: img.PID()},
			{Name: "vid", Kind: cfg.Number, Num: img.VID()},
			{Name: "hardwareid", Kind: cfg.Number, Num: img.HardwareID()},
			{Name: "firmwareid", Kind: cfg.Number, Num: img.FirmwareID()},
			{Name: "imagename", Kind: cfg.Reference, Str: u.ImagePath},
			{Name: "filelist", Kind: cfg.Reference, Str: "FILELIST"},
			{Name: "encrypt", Kind: cfg.Reference, Str: encrypt},
		},
	})

	banner := ";/**************************************************************************/\n"
	var sb strings.Builder
	sb.WriteString(banner)
	fmt.Fprintf(&sb, "; %s\n", time.Now().Format("2006-01-02 15:04:05"))
	sb.WriteString("; generated by OpenixIMG\n")
	fmt.Fprintf(&sb, "; %s\n", u.ImagePath)
	sb.WriteString(banner)
	sb.WriteString(c.Dump())

	path := filepath.Join(outDir, "image.cfg")
	if err := os.WriteFile(path, []byte(sb.String()), 0666); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}

// Pack would assemble a directory produced by Unpack back into an image.
func Pack(inputDir, outputFile string, encrypt bool) error {
	return ErrNotImplemented
}
