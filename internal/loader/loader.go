// Package loader reads disk and program files, unpacking .gz, .zip and .7z
// archives, and classifies their content.
package loader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/d64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/g64"
)

// Type identifies the content of a loaded file.
type Type int

const (
	TypeUnknown Type = iota
	TypeD64
	TypeG64
	TypePRG
)

func (t Type) String() string {
	switch t {
	case TypeD64:
		return "D64"
	case TypeG64:
		return "G64"
	case TypePRG:
		return "PRG"
	}
	return "unknown"
}

var (
	ErrEmptyArchive = errors.New("loader: archive contains no files")
	ErrNotADisk     = errors.New("loader: file is not a disk image")
)

// File is a loaded, decompressed file.
type File struct {
	Name string // name of the payload, inside the archive if packed
	Type Type
	Data []byte
}

// Load reads path and unpacks it if the extension names an archive.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(filepath.Base(path), data)
}

// Decode unpacks data according to the extension of name and classifies the
// payload. Archives yield their first regular file.
func Decode(name string, data []byte) (*File, error) {
	inner, payload, err := name, data, error(nil)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		inner = strings.TrimSuffix(name, filepath.Ext(name))
		payload, err = gunzip(data)
	case ".zip":
		inner, payload, err = unzip(data)
	case ".7z":
		inner, payload, err = un7z(data)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	return &File{Name: inner, Type: Classify(inner, payload), Data: payload}, nil
}

// Classify determines the file type from the extension, falling back to the
// content for unknown extensions.
func Classify(name string, data []byte) Type {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".d64":
		return TypeD64
	case ".g64":
		return TypeG64
	case ".prg":
		return TypePRG
	}
	if bytes.HasPrefix(data, []byte(g64.Signature)) {
		return TypeG64
	}
	if _, err := d64.Parse(data); err == nil {
		return TypeD64
	}
	return TypeUnknown
}

// Disk turns a D64 or G64 file into a disk surface. D64 images are encoded
// with cfg.
func (f *File) Disk(cfg disk.EncoderConfig) (*disk.Disk, error) {
	d := disk.New(cfg)
	switch f.Type {
	case TypeD64:
		a, err := d64.Parse(f.Data)
		if err != nil {
			return nil, err
		}
		if err := d.EncodeArchive(a); err != nil {
			return nil, err
		}
	case TypeG64:
		if err := g64.Read(f.Data, d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s is %v", ErrNotADisk, f.Name, f.Type)
	}
	return d, nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func unzip(data []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()
		out, err := io.ReadAll(rc)
		return filepath.Base(f.Name), out, err
	}
	return "", nil, ErrEmptyArchive
}

func un7z(data []byte) (string, []byte, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()
		out, err := io.ReadAll(rc)
		return filepath.Base(f.Name), out, err
	}
	return "", nil, ErrEmptyArchive
}
