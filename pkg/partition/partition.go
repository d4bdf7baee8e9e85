// Package partition parses sys_partition.fex, the Allwinner flash layout
// description carried inside IMAGEWTY firmware images.
package partition

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Partition is one flash partition. Size is in 512-byte sectors.
type Partition struct {
	Name         string `json:"name"`
	Size         uint64 `json:"size"`
	DownloadFile string `json:"downloadfile"`
	UserType     uint32 `json:"user_type"`
	KeyData      bool   `json:"keydata"`
	Encrypt      bool   `json:"encrypt"`
	Verify       bool   `json:"verify"`
	RO           bool   `json:"ro"`
}

// Table is a parsed partition table.
type Table struct {
	MBRSize    uint32      `json:"mbr_size"`
	Partitions []Partition `json:"partitions"`
}

// Parse reads a sys_partition.fex from r. The format is line oriented:
// an optional [mbr] section with a size, then [partition_start] followed
// by one [partition] section per partition. Unknown keys are ignored; a
// partition without a name is dropped.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}
	inMBR := false
	inPartition := false
	var current Partition

	commit := func() {
		if current.Name != "" {
			t.Partitions = append(t.Partitions, current)
		}
		current = Partition{}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.Trim(sc.Text(), " \t\r")
		if line == "" || line[0] == ';' || strings.HasPrefix(line, "//") {
			continue
		}

		switch line {
		case "[partition_start]":
			inPartition = true
			inMBR = false
			continue
		case "[mbr]":
			inMBR = true
			inPartition = false
			continue
		case "[partition]":
			inMBR = false
			commit()
			inPartition = true
			continue
		}

		if inMBR {
			if key, val, ok := splitKeyValue(line); ok && key == "size" {
				n, _ := parseNumber(val)
				t.MBRSize = uint32(n)
			}
			continue
		}
		if inPartition {
			// Until the name key is seen, only name-bearing lines are
			// considered for the partition being built.
			if current.Name != "" || strings.Contains(line, "name") {
				parseField(line, &current)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read partition table: %w", err)
	}

	if inPartition {
		commit()
	}
	return t, nil
}

// ParseBytes parses a partition table from an in-memory buffer, typically
// the sys_partition.fex payload of a loaded image.
func ParseBytes(b []byte) (*Table, error) {
	return Parse(bytes.NewReader(b))
}

// ByName returns the partition with the given name, or nil.
func (t *Table) ByName(name string) *Partition {
	for i := range t.Partitions {
		if t.Partitions[i].Name == name {
			return &t.Partitions[i]
		}
	}
	return nil
}

// Exists reports whether a partition with the given name is present.
func (t *Table) Exists(name string) bool {
	return t.ByName(name) != nil
}

// DumpText renders the table as a fixed-width listing.
func (t *Table) DumpText() string {
	sep := strings.Repeat("-", 104)

	var sb strings.Builder
	sb.WriteString("\nPartition details:\n")
	sb.WriteString(sep + "\n")
	fmt.Fprintf(&sb, "%-20s%-20s%-35s%-10s%s\n", "Name", "Size", "Download File", "User Type", "Flags")
	sb.WriteString(sep + "\n")

	for _, p := range t.Partitions {
		download := p.DownloadFile
		if download == "" {
			download = "-"
		}

		var flags string
		if p.KeyData {
			flags += "K"
		}
		if p.Encrypt {
			flags += "E"
		}
		if p.Verify {
			flags += "V"
		}
		if p.RO {
			flags += "R"
		}
		if flags == "" {
			flags = "-"
		}

		fmt.Fprintf(&sb, "%-20s%-20d%-35s%-10s%s\n",
			p.Name, p.Size, download, fmt.Sprintf("0x%04x", p.UserType), flags)
	}

	sb.WriteString("\nFlags: K=KeyData, E=Encrypt, V=Verify, R=Read-Only\n")
	return sb.String()
}

// DumpJSON renders the table as JSON.
func (t *Table) DumpJSON() (string, error) {
	b, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return "", fmt.Errorf("could not serialize partition table: %w", err)
	}
	return string(b) + "\n", nil
}

func splitKeyValue(line string) (key, val string, ok bool) {
	key = parseIdentifier(&line)
	if key == "" {
		return "", "", false
	}
	line = strings.TrimLeft(line, " \t\r")
	if line == "" || line[0] != '=' {
		return "", "", false
	}
	val = strings.TrimLeft(line[1:], " \t\r")
	return key, val, true
}

func parseField(line string, p *Partition) {
	key, val, ok := splitKeyValue(line)
	if !ok || val == "" {
		return
	}

	switch key {
	case "name":
		p.Name = parseIdentifier(&val)
	case "size":
		p.Size, _ = parseNumber(val)
	case "downloadfile":
		if val[0] == '"' {
			p.DownloadFile = parseQuoted(val)
		} else {
			p.DownloadFile = parseIdentifier(&val)
		}
	case "user_type":
		n, _ := parseNumber(val)
		p.UserType = uint32(n)
	case "keydata":
		n, _ := parseNumber(val)
		p.KeyData = n != 0
	case "encrypt":
		n, _ := parseNumber(val)
		p.Encrypt = n != 0
	case "verify":
		n, _ := parseNumber(val)
		p.Verify = n != 0
	case "ro":
		n, _ := parseNumber(val)
		p.RO = n != 0
	}
}

// parseIdentifier consumes the identifier charset used by fex files, which
// admits path separators and a few punctuation characters.
func parseIdentifier(s *string) string {
	i := 0
	for i < len(*s) && isIdentChar((*s)[i]) {
		i++
	}
	id := (*s)[:i]
	*s = (*s)[i:]
	return id
}

func isIdentChar(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	}
	switch ch {
	case '_', '-', '.', '/', '\\', ':', '#', '(', ')':
		return true
	}
	return false
}

// parseQuoted reads a double-quoted string with backslash escapes.
func parseQuoted(s string) string {
	if s == "" || s[0] != '"' {
		return ""
	}
	var sb strings.Builder
	i := 1
	for i < len(s) && s[i] != '"' {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// parseNumber reads a decimal or 0x-prefixed hex literal.
func parseNumber(s string) (uint64, bool) {
	s = strings.TrimLeft(s, " \t\r")
	var n uint64
	ok := false

	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		for _, ch := range []byte(s[2:]) {
			var d uint64
			switch {
			case ch >= '0' && ch <= '9':
				d = uint64(ch - '0')
			case ch >= 'a' && ch <= 'f':
				d = uint64(ch-'a') + 10
			case ch >= 'A' && ch <= 'F':
				d = uint64(ch-'A') + 10
			default:
				return n, ok
			}
			n = n*16 + d
			ok = true
		}
		return n, ok
	}

	for _, ch := range []byte(s) {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + uint64(ch-'0')
		ok = true
	}
	return n, ok
}
