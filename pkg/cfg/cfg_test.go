package cfg

import (
	"strings"
	"testing"
)

const sampleImageCfg = `
;/**************************************************************************/
; sample config
;/**************************************************************************/
[DIR_DEF]
INPUT_DIR = "../"

[FILELIST]
{filename = "a", maintype = "BOOT", subtype = "A"},
{filename = "b", maintype = "BOOT", subtype = "B"},

[IMAGE_CFG]
version = 0x100234
pid = 0x1234
vid = 0x8743
imagename = firmware.img
filelist = FILELIST
`

func TestParseSample(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleImageCfg))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if n := c.CountVariables("FILELIST"); n != 2 {
		t.Errorf("wrong FILELIST count: got %d, want 2", n)
	}

	if v, ok := c.GetNumberIn("IMAGE_CFG", "version"); !ok || v != 0x100234 {
		t.Errorf("wrong version: got 0x%x, %v", v, ok)
	}
	if v, ok := c.GetNumberIn("IMAGE_CFG", "pid"); !ok || v != 0x1234 {
		t.Errorf("wrong pid: got 0x%x, %v", v, ok)
	}
	if v, ok := c.GetString("INPUT_DIR"); !ok || v != "../" {
		t.Errorf("wrong INPUT_DIR: got %q, %v", v, ok)
	}

	// filelist names the FILELIST group, so it must come back a reference.
	fl := c.FindVariableIn("IMAGE_CFG", "filelist")
	if fl == nil || fl.Kind != Reference || fl.Str != "FILELIST" {
		t.Errorf("filelist not parsed as reference: %+v", fl)
	}

	items := c.FindGroup("FILELIST").Variables
	if items[0].Kind != ListItem || len(items[0].Items) != 3 {
		t.Fatalf("bad first list item: %+v", items[0])
	}
	if items[0].Items[0].Name != "filename" || items[0].Items[0].Str != "a" {
		t.Errorf("bad filename sub-item: %+v", items[0].Items[0])
	}
	if items[1].Items[2].Str != "B" {
		t.Errorf("bad subtype sub-item: %+v", items[1].Items[2])
	}
}

func TestDumpHexInsideImageCfg(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleImageCfg))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := c.Dump()

	if !strings.Contains(out, "version = 0x100234\n") {
		t.Errorf("version not printed in hex:\n%s", out)
	}
	if !strings.Contains(out, "INPUT_DIR = \"../\"\n") {
		t.Errorf("string not quoted:\n%s", out)
	}
	if !strings.Contains(out, "filelist = FILELIST\n") {
		t.Errorf("reference not printed bare:\n%s", out)
	}
	if !strings.Contains(out, "{ filename = \"a\", maintype = \"BOOT\", subtype = \"A\", },\n") {
		t.Errorf("list item mis-rendered:\n%s", out)
	}
}

func TestDumpDecimalOutsideImageCfg(t *testing.T) {
	c, err := Parse(strings.NewReader("[MAIN]\ncount = 0x10\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(c.Dump(), "count = 16\n") {
		t.Errorf("number outside IMAGE_CFG not decimal:\n%s", c.Dump())
	}
}

func TestDumpRoundTrip(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleImageCfg))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c2, err := Parse(strings.NewReader(c.Dump()))
	if err != nil {
		t.Fatalf("Parse of dump: %v", err)
	}
	if c2.Dump() != c.Dump() {
		t.Errorf("dump not stable:\n%s\nvs:\n%s", c.Dump(), c2.Dump())
	}
}

func TestVariableSubstitution(t *testing.T) {
	src := `
[DEFS]
base = "rootfs"
num = 16

[MAIN]
full = base .. ".fex"
tagged = base .. num
plain = unknown_ident
`
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if v, _ := c.GetStringIn("MAIN", "full"); v != "rootfs.fex" {
		t.Errorf("wrong concat: %q", v)
	}
	// Numeric variables substitute as hex text.
	if v, _ := c.GetStringIn("MAIN", "tagged"); v != "rootfs0x10" {
		t.Errorf("wrong numeric substitution: %q", v)
	}
	// Unknown identifiers keep their literal spelling.
	if v, _ := c.GetStringIn("MAIN", "plain"); v != "unknown_ident" {
		t.Errorf("wrong literal fallback: %q", v)
	}
}

func TestGroupReferenceReclassification(t *testing.T) {
	src := `
[TARGET]
x = 1

[MAIN]
ref = "TARGET"
str = "ELSEWHERE"
`
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v := c.FindVariableIn("MAIN", "ref"); v == nil || v.Kind != Reference {
		t.Errorf("known group name not reclassified: %+v", v)
	}
	if v := c.FindVariableIn("MAIN", "str"); v == nil || v.Kind != String {
		t.Errorf("unknown name wrongly reclassified: %+v", v)
	}
}

func TestNumberBases(t *testing.T) {
	src := `
[NUMS]
hex = 0x1F
oct = 0755
dec = 42
neg = -1
`
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, tc := range []struct {
		name string
		want uint32
	}{
		{"hex", 0x1f},
		{"oct", 0755},
		{"dec", 42},
		{"neg", 0xffffffff},
	} {
		if v, ok := c.GetNumberIn("NUMS", tc.name); !ok || v != tc.want {
			t.Errorf("%s: got %#x (%v), want %#x", tc.name, v, ok, tc.want)
		}
	}
}

func TestCommentsAndOrphans(t *testing.T) {
	src := `
# full-line hash comment
; full-line semicolon comment
orphan = 1
{filename = "x"},
[MAIN]
a = 5 ; trailing comment
`
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := c.GetNumberIn("MAIN", "a"); !ok || v != 5 {
		t.Errorf("trailing comment broke value: got %d, %v", v, ok)
	}
	// Orphans are skipped, not indexed.
	if c.FindVariable("orphan") != nil {
		t.Errorf("orphan variable leaked into the index")
	}
}

func TestMalformedLine(t *testing.T) {
	if _, err := Parse(strings.NewReader("[MAIN]\n*garbage*\n")); err == nil {
		t.Errorf("malformed line accepted")
	}
}

func TestEmptyInput(t *testing.T) {
	if _, err := Parse(strings.NewReader("; nothing here\n")); err == nil {
		t.Errorf("group-less input accepted")
	}
}

func TestFirstWriterWinsIndex(t *testing.T) {
	src := `
[A]
dup = 1

[B]
dup = 2
`
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, _ := c.GetNumber("dup"); v != 1 {
		t.Errorf("flat index not first-writer-wins: got %d", v)
	}
	if v, _ := c.GetNumberIn("B", "dup"); v != 2 {
		t.Errorf("group lookup shadowed: got %d", v)
	}
}
