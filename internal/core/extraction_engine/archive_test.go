package extraction_engine

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o600, Size: int64(len(content)), Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(content))
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func TestListZipMembers(t *testing.T) {
	data := makeZip(t, map[string]string{
		"one.txt":     "first",
		"two.txt":     "second",
		".hidden":     "skip me",
		"nested/x.md": "third",
	})

	members, err := listArchiveMembers(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3 (dotfiles skipped)", len(members))
	}
}

func TestListTarGzMembers(t *testing.T) {
	data := makeTarGz(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	members, err := listArchiveMembers(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
}

func TestListPlainGzipMember(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Name = "report.txt"
	gz.Write([]byte("not a tarball"))
	gz.Close()

	members, err := listArchiveMembers(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].name != "report.txt" {
		t.Fatalf("got %+v, want single report.txt member", members)
	}
	if string(members[0].data) != "not a tarball" {
		t.Fatalf("member data = %q", members[0].data)
	}
}

func TestListArchiveMembersGarbage(t *testing.T) {
	if _, err := listArchiveMembers([]byte("definitely not an archive")); err == nil {
		t.Fatal("expected error for non-archive payload")
	}
}
