package cli

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// dirFS exposes a directory of a vfs.FileSystem as an fs.FS, so migration
// scripts can be loaded with dbmigration.LoadFS from any backing filesystem.
type dirFS struct {
	fs   vfs.FileSystem
	root string
}

var (
	_ fs.ReadDirFS  = dirFS{}
	_ fs.ReadFileFS = dirFS{}
)

func newDirFS(vfsys vfs.FileSystem, root string) dirFS {
	return dirFS{fs: vfsys, root: root}
}

func (d dirFS) path(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(d.root, filepath.FromSlash(name)), nil
}

func (d dirFS) Open(name string) (fs.File, error) {
	path, err := d.path("open", name)
	if err != nil {
		return nil, err
	}
	f, err := d.fs.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d dirFS) ReadDir(name string) ([]fs.DirEntry, error) {
	path, err := d.path("readdir", name)
	if err != nil {
		return nil, err
	}
	infos, err := vfs.ReadDir(d.fs, path)
	if err != nil {
		return nil, err
	}

	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

func (d dirFS) ReadFile(name string) ([]byte, error) {
	path, err := d.path("readfile", name)
	if err != nil {
		return nil, err
	}
	return vfs.ReadFile(d.fs, path)
}
