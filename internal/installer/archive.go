// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// extract unpacks src according to a. Archives ending in .zip are zip,
// everything else is treated as gzip-compressed tar. It returns the
// number of files written.
func extract(src string, a Archive) (int, error) {
	if strings.HasSuffix(strings.ToLower(a.URL), ".zip") {
		return extractZip(src, a)
	}
	return extractTarGz(src, a)
}

// destination resolves an entry through a.Place and rejects anything that
// would land outside a.Roots.
func destination(a Archive, entry string) (string, error) {
	entry = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(entry, `\`, "/")), "/")
	if entry == "" || entry == "." {
		return "", nil
	}
	dest := a.Place(entry)
	if dest == "" {
		return "", nil
	}
	dest = filepath.Clean(dest)
	for _, root := range a.Roots {
		rel, err := filepath.Rel(filepath.Clean(root), dest)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return dest, nil
		}
	}
	return "", fmt.Errorf("archive entry %q escapes the install directory", entry)
}

// extractZip extracts the mapped entries of a zip file.
func extractZip(src string, a Archive) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	written := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := destination(a, f.Name)
		if err != nil {
			return written, err
		}
		if dest == "" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return written, err
		}
		err = writeFile(dest, rc, executableMode(f.Mode()))
		rc.Close()
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// extractTarGz extracts the mapped entries of a tar.gz file. Relative
// symlinks that stay inside the install roots are recreated.
func extractTarGz(src string, a Archive) (int, error) {
	file, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return 0, err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	written := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, err
		}

		dest, err := destination(a, header.Name)
		if err != nil {
			return written, err
		}
		if dest == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeReg:
			if err := writeFile(dest, tr, executableMode(header.FileInfo().Mode())); err != nil {
				return written, err
			}
			written++
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				continue
			}
			target := filepath.Join(filepath.Dir(dest), filepath.FromSlash(header.Linkname))
			if _, err := destinationFor(a, target); err != nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return written, err
			}
			os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// destinationFor checks an already resolved path against the roots.
func destinationFor(a Archive, dest string) (string, error) {
	return destination(Archive{Roots: a.Roots, Place: func(string) string { return dest }}, "x")
}

func executableMode(m os.FileMode) os.FileMode {
	if m.Perm()&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

// writeFile replaces dest. Removing first avoids ETXTBSY when the old
// binary is running.
func writeFile(dest string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	os.Remove(dest)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
