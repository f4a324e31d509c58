package extraction_engine

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxArchiveMembers caps how many members one archive may contribute.
const maxArchiveMembers = 100

// memberReadLimit bounds how much of a single member is read into memory;
// oversized members are rejected later against the configured input cap, but
// the reader itself must not be trusted to stop.
const memberReadLimit = 512 << 20

type archiveMember struct {
	name string
	data []byte
}

// listArchiveMembers extracts the regular-file members of a zip, tar,
// gzipped tar, or plain gzip payload. Member order is not significant here;
// the caller sorts by name for deterministic sequencing.
func listArchiveMembers(data []byte) ([]archiveMember, error) {
	switch {
	case bytes.HasPrefix(data, []byte("PK")):
		return listZipMembers(data)
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return listGzipMembers(data)
	default:
		return listTarMembers(bytes.NewReader(data))
	}
}

func listZipMembers(data []byte) ([]archiveMember, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var members []archiveMember
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		if len(members) >= maxArchiveMembers {
			break
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		buf, err := io.ReadAll(io.LimitReader(rc, memberReadLimit))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip member %s: %w", f.Name, err)
		}
		members = append(members, archiveMember{name: f.Name, data: buf})
	}
	return members, nil
}

func listGzipMembers(data []byte) ([]archiveMember, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	inner, err := io.ReadAll(io.LimitReader(gz, memberReadLimit))
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}

	// A gzip payload is usually a tarball; fall back to a single member
	// named after the embedded filename when it is not.
	if members, err := listTarMembers(bytes.NewReader(inner)); err == nil && len(members) > 0 {
		return members, nil
	}
	name := gz.Name
	if name == "" {
		name = "gzipped-file"
	}
	return []archiveMember{{name: name, data: inner}}, nil
}

func listTarMembers(r io.Reader) ([]archiveMember, error) {
	tr := tar.NewReader(r)
	var members []archiveMember
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || strings.HasPrefix(path.Base(hdr.Name), ".") {
			continue
		}
		if len(members) >= maxArchiveMembers {
			break
		}
		buf, err := io.ReadAll(io.LimitReader(tr, memberReadLimit))
		if err != nil {
			return nil, fmt.Errorf("read tar member %s: %w", hdr.Name, err)
		}
		members = append(members, archiveMember{name: hdr.Name, data: buf})
	}
	if len(members) == 0 {
		return nil, errors.New("no regular members found")
	}
	return members, nil
}
