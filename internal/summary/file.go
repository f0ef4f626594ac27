package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrSchema is returned when decoding a payload written by another schema.
var ErrSchema = errors.New("summary: schema version mismatch")

// Encode writes mods as a msgpack payload.
func Encode(w io.Writer, mods []ModuleSummary) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&File{Schema: SchemaVersion, Modules: mods})
}

// Decode reads a msgpack payload written by Encode.
func Decode(r io.Reader) ([]ModuleSummary, error) {
	var f File
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("summary: decode: %w", err)
	}
	if f.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchema, f.Schema, SchemaVersion)
	}
	return f.Modules, nil
}

// WriteFile replaces path atomically: the payload goes to a temp file in
// the same directory which is then renamed over path.
func WriteFile(path string, mods []ModuleSummary) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			// остаток после неудачной записи
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if err = Encode(f, mods); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), path)
}

// ReadFile loads a payload written by WriteFile.
func ReadFile(path string) ([]ModuleSummary, error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f)
}

// WriteJSON renders mods as indented JSON.
func WriteJSON(w io.Writer, mods []ModuleSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&File{Schema: SchemaVersion, Modules: mods})
}
