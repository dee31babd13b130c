// Package storage persists canvas documents as JSON or YAML files.
//
// Every saved file carries a "meta" object next to the document fields:
//
//	{"version":1,"width":800,"height":600,"objects":[...],
//	 "meta":{"saved_at":"2026-01-02T15:04:05Z","objects":3}}
//
// The scene decoder ignores meta, so a stored file loads like a snapshot.
package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/sketchpad/internal/history"
	"github.com/dshills/sketchpad/internal/scene"
)

// Format is an on-disk document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// extensions maps file extensions to formats, in lookup order.
var extensions = []struct {
	ext    string
	format Format
}{
	{".json", FormatJSON},
	{".yaml", FormatYAML},
	{".yml", FormatYAML},
}

// Info summarizes a stored document.
type Info struct {
	Name    string
	Path    string
	Format  Format
	Version int
	Objects int
	SavedAt time.Time
	Size    int64
}

// Store reads and writes documents in one directory.
type Store struct {
	dir    string
	format Format
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFormat sets the format used by Save.
func WithFormat(f Format) Option {
	return func(s *Store) {
		s.format = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		format: FormatJSON,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.format != FormatJSON && s.format != FormatYAML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s.format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Format returns the format used by Save.
func (s *Store) Format() Format {
	return s.format
}

// Save writes doc under name, replacing any document of the same name in
// another format. It returns the written path.
func (s *Store) Save(name string, doc scene.Document) (string, error) {
	if err := validName(name); err != nil {
		return "", &DocumentError{Op: "save", Name: name, Err: err}
	}

	data, err := s.encode(doc)
	if err != nil {
		return "", &DocumentError{Op: "save", Name: name, Err: err}
	}

	path := filepath.Join(s.dir, name+s.format.Ext())
	if err := writeAtomic(path, data); err != nil {
		return "", &DocumentError{Op: "save", Name: name, Err: err}
	}
	for _, e := range extensions {
		if other := filepath.Join(s.dir, name+e.ext); other != path {
			_ = os.Remove(other)
		}
	}

	s.logger.Debug("document saved", "name", name, "path", path, "objects", len(doc.Objects))
	return path, nil
}

// Load reads the document stored under name.
func (s *Store) Load(name string) (scene.Document, error) {
	if err := validName(name); err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: name, Err: err}
	}
	path, format, err := s.find(name)
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: name, Err: err}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: name, Err: err}
	}
	data, err := toJSON(raw, format)
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: name, Err: err}
	}
	doc, err := scene.DecodeDocument(history.NewSnapshot(data))
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: name, Err: err}
	}
	return doc, nil
}

// LoadFile reads a document from an explicit path. The format follows the
// file extension.
func LoadFile(path string) (scene.Document, error) {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: path, Err: err}
	}
	data, err := toJSON(raw, format)
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: path, Err: err}
	}
	doc, err := scene.DecodeDocument(history.NewSnapshot(data))
	if err != nil {
		return scene.Document{}, &DocumentError{Op: "load", Name: path, Err: err}
	}
	return doc, nil
}

// Delete removes the document stored under name.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return &DocumentError{Op: "delete", Name: name, Err: err}
	}
	path, _, err := s.find(name)
	if err != nil {
		return &DocumentError{Op: "delete", Name: name, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &DocumentError{Op: "delete", Name: name, Err: err}
	}
	return nil
}

// List summarizes every stored document, newest first. Unreadable files
// are logged and skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := formatOf(entry.Name())
		if !ok {
			continue
		}
		info, err := s.stat(entry, format)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "file", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].SavedAt.After(infos[j].SavedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (s *Store) stat(entry fs.DirEntry, format Format) (Info, error) {
	path := filepath.Join(s.dir, entry.Name())
	fi, err := entry.Info()
	if err != nil {
		return Info{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	data, err := toJSON(raw, format)
	if err != nil {
		return Info{}, err
	}
	if !gjson.ValidBytes(data) {
		return Info{}, scene.ErrMalformedSnapshot
	}

	fields := gjson.GetManyBytes(data, "version", "objects.#", "meta.saved_at")
	info := Info{
		Name:    strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
		Path:    path,
		Format:  format,
		Version: int(fields[0].Int()),
		Objects: int(fields[1].Int()),
		SavedAt: fi.ModTime(),
		Size:    fi.Size(),
	}
	if info.Version == 0 {
		info.Version = scene.DocumentVersion
	}
	if t := fields[2].Time(); !t.IsZero() {
		info.SavedAt = t
	}
	return info, nil
}

// encode renders doc in the store format with a meta stamp.
func (s *Store) encode(doc scene.Document) ([]byte, error) {
	snap, err := scene.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}
	data, err := sjson.SetBytes(snap.Bytes(), "meta.saved_at", s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetBytes(data, "meta.objects", len(doc.Objects))
	if err != nil {
		return nil, err
	}

	switch s.format {
	case FormatYAML:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return yaml.Marshal(v)
	default:
		return pretty.Pretty(data), nil
	}
}

// toJSON converts a stored file to JSON bytes.
func toJSON(raw []byte, format Format) ([]byte, error) {
	if format != FormatYAML {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", scene.ErrMalformedSnapshot, err)
	}
	if v == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scene.ErrMalformedSnapshot, err)
	}
	return data, nil
}

func (s *Store) find(name string) (string, Format, error) {
	for _, e := range extensions {
		path := filepath.Join(s.dir, name+e.ext)
		if _, err := os.Stat(path); err == nil {
			return path, e.format, nil
		}
	}
	return "", "", ErrNotFound
}

func formatOf(file string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(file))
	for _, e := range extensions {
		if e.ext == ext {
			return e.format, true
		}
	}
	return "", false
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return ErrInvalidName
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sketch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
