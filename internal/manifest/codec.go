// Package manifest reads and writes checksum databases.
//
// A database is a JSON array of two or three objects: a header with metadata,
// a flat body mapping relative paths to hex checksums, and optionally a list
// of files that could not be read. Databases whose name ends in ".ver" hold
// the same document as the single entry of a zip archive.
package manifest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Header keys as they are written.
const (
	keyOrigin         = "App/Origin"
	keyFolder         = "Folder"
	keyAlgorithm      = "Algorithm"
	keyTotalChecksums = "Total Checksums"
	keyTotalSize      = "Total Size"
	keyWorkDir        = "WorkDir"
	keyIncluded       = "Included"
	keyIgnored        = "Ignored"
	keySkipped        = "Skipped"
	keyCreated        = "Created"
	keyUpdated        = "Updated"
	keyVerified       = "Verified"
	keyComment        = "Comment"
	keyFlags          = "Flags"

	keyUnreadable = "Unreadable files"
)

// TimeLayout is the timestamp format of header dates, in local time.
const TimeLayout = "2006/01/02 15:04:05"

// shortTimeLayout is accepted on read for databases written without seconds.
const shortTimeLayout = "2006/01/02 15:04"

// flagConst in the Flags header marks a database as read-only.
const flagConst = "const"

var zipMagic = []byte("PK\x03\x04")

// Codec converts between vt.Document and the on-disk form.
type Codec struct {
	// Origin is written to the header in place of the document's own tag
	// when set.
	Origin string
}

// IsCompressedName reports whether path names the zip form of a database.
func IsCompressedName(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), vt.DatabaseShortExt)
}

// Marshal renders doc. When compressed is set, the JSON document is wrapped
// as the single entry of a zip archive.
func (c Codec) Marshal(doc *vt.Document, compressed bool) ([]byte, error) {
	var buf bytes.Buffer
	if !compressed {
		if err := c.Encode(&buf, doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	zw := zip.NewWriter(&buf)
	name := doc.Meta.FolderName() + vt.DatabaseExt
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("creating archive entry: %w", err)
	}
	if err := c.Encode(w, doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode writes doc as an indented JSON document with header keys in a fixed
// order and body entries in document order.
func (c Codec) Encode(w io.Writer, doc *vt.Document) error {
	m := &doc.Meta
	origin := c.Origin
	if origin == "" {
		origin = m.Origin
	}

	var hdr objectWriter
	hdr.str(keyOrigin, origin)
	hdr.str(keyFolder, m.FolderName())
	hdr.str(keyAlgorithm, m.Algorithm.String())
	hdr.num(keyTotalChecksums, int64(len(doc.Entries)))
	hdr.num(keyTotalSize, doc.TotalSize)
	if !m.IsRelative() {
		hdr.str(keyWorkDir, m.WorkDir)
	}
	// The mode key is written even for an empty list: an include rule with
	// no extensions admits nothing, which differs from no rule at all.
	switch m.Filter.Mode {
	case vt.FilterInclude:
		hdr.str(keyIncluded, m.Filter.ExtensionList())
	case vt.FilterIgnore:
		hdr.str(keyIgnored, m.Filter.ExtensionList())
	}
	hdr.str(keySkipped, skippedList(m.Filter))
	hdr.time(keyCreated, m.Created)
	hdr.time(keyUpdated, m.Updated)
	hdr.time(keyVerified, m.Verified)
	if m.Comment != "" {
		hdr.str(keyComment, m.Comment)
	}
	if m.Immutable {
		hdr.str(keyFlags, flagConst)
	}

	var body objectWriter
	for _, e := range doc.Entries {
		body.str(e.Path, e.Checksum)
	}

	var out bytes.Buffer
	out.WriteString("[\n")
	hdr.writeTo(&out)
	out.WriteString(",\n")
	body.writeTo(&out)
	if len(doc.Unreadable) > 0 {
		out.WriteString(",\n    {\n        ")
		out.WriteString(quote(keyUnreadable))
		out.WriteString(": [")
		for i, p := range doc.Unreadable {
			if i > 0 {
				out.WriteString(",")
			}
			out.WriteString("\n            ")
			out.WriteString(quote(p))
		}
		out.WriteString("\n        ]\n    }")
	}
	out.WriteString("\n]\n")

	_, err := w.Write(out.Bytes())
	return err
}

// Decode parses a database. Archive input is recognized by its magic bytes,
// not by name. Shape errors wrap vt.ErrCorruptDatabase; a body without
// entries wraps vt.ErrEmptyDatabase.
func Decode(data []byte) (*vt.Document, error) {
	if bytes.HasPrefix(data, zipMagic) {
		inner, err := unzipSingle(data)
		if err != nil {
			return nil, err
		}
		data = inner
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '['); err != nil {
		return nil, corrupt("document is not an array: %v", err)
	}

	header, err := readObject(dec)
	if err != nil {
		return nil, corrupt("header: %v", err)
	}
	if !dec.More() {
		return nil, corrupt("no checksum object")
	}
	body, err := readObject(dec)
	if err != nil {
		return nil, corrupt("checksums: %v", err)
	}

	doc := &vt.Document{}
	doc.Entries = make([]vt.Entry, 0, len(body))
	for _, f := range body {
		sum, ok := f.value.(string)
		if !ok {
			return nil, corrupt("checksum of %q is not a string", f.key)
		}
		doc.Entries = append(doc.Entries, vt.Entry{Path: f.key, Checksum: sum})
	}

	if dec.More() {
		extra, err := readObject(dec)
		if err != nil {
			return nil, corrupt("unreadable list: %v", err)
		}
		if f, ok := lookupHeader(extra, keyUnreadable); ok {
			list, ok := f.value.([]any)
			if !ok {
				return nil, corrupt("unreadable list is not an array")
			}
			for _, v := range list {
				if p, ok := v.(string); ok {
					doc.Unreadable = append(doc.Unreadable, p)
				}
			}
		}
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, corrupt("trailing data: %v", err)
	}

	if err := decodeHeader(header, doc); err != nil {
		return nil, err
	}
	if len(doc.Entries) == 0 {
		return doc, vt.ErrEmptyDatabase
	}
	return doc, nil
}

func decodeHeader(header []field, doc *vt.Document) error {
	m := &doc.Meta
	get := func(key string) (string, bool) {
		f, ok := lookupHeader(header, key)
		if !ok {
			return "", false
		}
		switch v := f.value.(type) {
		case string:
			return v, true
		case json.Number:
			return v.String(), true
		default:
			return "", false
		}
	}

	m.Origin, _ = get(keyOrigin)
	m.Comment, _ = get(keyComment)
	if wd, ok := get(keyWorkDir); ok && wd != "" {
		m.WorkDir = filepath.Clean(wd)
	}
	if flags, ok := get(keyFlags); ok {
		m.Immutable = strings.Contains(strings.ToLower(flags), flagConst)
	}
	if size, ok := get(keyTotalSize); ok {
		doc.TotalSize, _ = strconv.ParseInt(size, 10, 64)
	}

	m.Filter = vt.DefaultFilterRule()
	if skipped, ok := get(keySkipped); ok {
		m.Filter = parseSkipped(skipped)
	}
	if list, ok := get(keyIncluded); ok {
		m.Filter.Mode = vt.FilterInclude
		m.Filter.Extensions = vt.ParseExtensionList(list)
	} else if list, ok := get(keyIgnored); ok {
		m.Filter.Mode = vt.FilterIgnore
		m.Filter.Extensions = vt.ParseExtensionList(list)
	}

	m.Created = parseTime(get(keyCreated))
	m.Updated = parseTime(get(keyUpdated))
	m.Verified = parseTime(get(keyVerified))

	if name, ok := get(keyAlgorithm); ok {
		if alg, err := vt.ParseAlgorithm(name); err == nil {
			m.Algorithm = alg
		}
	}
	if m.Algorithm == vt.AlgorithmUnknown && len(doc.Entries) > 0 {
		alg, ok := vt.AlgorithmFromHexLen(len(doc.Entries[0].Checksum))
		if !ok {
			return corrupt("cannot infer algorithm from a %d-character checksum", len(doc.Entries[0].Checksum))
		}
		m.Algorithm = alg
	}
	return nil
}

// headerFallbacks lists, for each header key, the lowercase prefix accepted
// when the exact key is absent. Databases written by older versions used
// other spellings ("Algo", "Working folder", "Total Checksums: 42") and carry
// no format version, so lookup falls back to a bounded prefix match.
//
// The prefixes are chosen so that no two known keys share one; "total ch" and
// "total si" keep the two totals apart. An unknown key that happens to share
// a prefix will still be picked up, which is the accepted risk of the shim.
var headerFallbacks = map[string]string{
	keyOrigin:         "app",
	keyFolder:         "folder",
	keyAlgorithm:      "algo",
	keyTotalChecksums: "total ch",
	keyTotalSize:      "total si",
	keyWorkDir:        "work",
	keyIncluded:       "incl",
	keyIgnored:        "ignor",
	keySkipped:        "skip",
	keyCreated:        "creat",
	keyUpdated:        "updat",
	keyVerified:       "verif",
	keyComment:        "comm",
	keyFlags:          "flag",
	keyUnreadable:     "unread",
}

// lookupHeader finds key in fields: an exact match first, then the first
// field in document order whose lowercased key starts with the fallback
// prefix for key.
func lookupHeader(fields []field, key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	prefix, ok := headerFallbacks[key]
	if !ok {
		return field{}, false
	}
	for _, f := range fields {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.key)), prefix) {
			return f, true
		}
	}
	return field{}, false
}

func skippedList(f vt.FilterRule) string {
	var parts []string
	if f.IgnoreDbFiles {
		parts = append(parts, "databases")
	}
	if f.IgnoreDigestFiles {
		parts = append(parts, "digests")
	}
	if f.IgnoreUnreadable {
		parts = append(parts, "unreadable")
	}
	if f.IgnoreSymlinks {
		parts = append(parts, "symlinks")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

func parseSkipped(s string) vt.FilterRule {
	var f vt.FilterRule
	for _, part := range strings.Fields(strings.ToLower(s)) {
		switch part {
		case "databases":
			f.IgnoreDbFiles = true
		case "digests":
			f.IgnoreDigestFiles = true
		case "unreadable":
			f.IgnoreUnreadable = true
		case "symlinks":
			f.IgnoreSymlinks = true
		}
	}
	return f
}

func parseTime(s string, ok bool) time.Time {
	if !ok || s == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, shortTimeLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func unzipSingle(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corrupt("archive: %v", err)
	}
	if len(zr.File) == 0 {
		return nil, corrupt("archive is empty")
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, corrupt("archive entry: %v", err)
	}
	defer rc.Close()
	inner, err := io.ReadAll(rc)
	if err != nil {
		return nil, corrupt("archive entry: %v", err)
	}
	return inner, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", vt.ErrCorruptDatabase, fmt.Sprintf(format, args...))
}

// field is one key/value pair of a JSON object, kept in document order.
type field struct {
	key   string
	value any
}

func readObject(dec *json.Decoder) ([]field, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: value})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return fields, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %v, got %v", want, tok)
	}
	return nil
}

// objectWriter accumulates one indented JSON object.
type objectWriter struct {
	lines []string
}

func (o *objectWriter) str(key, value string) {
	o.lines = append(o.lines, quote(key)+": "+quote(value))
}

func (o *objectWriter) num(key string, n int64) {
	o.lines = append(o.lines, quote(key)+": "+strconv.FormatInt(n, 10))
}

func (o *objectWriter) time(key string, t time.Time) {
	if t.IsZero() {
		return
	}
	o.str(key, t.In(time.Local).Format(TimeLayout))
}

func (o *objectWriter) writeTo(b *bytes.Buffer) {
	if len(o.lines) == 0 {
		b.WriteString("    {\n    }")
		return
	}
	b.WriteString("    {\n")
	for i, line := range o.lines {
		b.WriteString("        ")
		b.WriteString(line)
		if i < len(o.lines)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("    }")
}

func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
