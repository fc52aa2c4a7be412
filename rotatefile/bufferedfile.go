package rotatefile

import (
	"os"

	"github.com/pkg/errors"
	"github.com/templexxx/fnc"
)

// bufferedFile wraps an *os.File opened through templexxx/fnc, which applies
// posix_fadvise-style hints appropriate for an append-mostly log file. Writes
// go straight to the kernel page cache; flush only calls fnc.FlushHint so the
// data becomes visible to other readers (tail -f, log shippers) without
// forcing an fsync on every record.
type bufferedFile struct {
	f       *os.File
	path    string
	written uint64
}

// openBufferedFile opens path for append, creating it if necessary. size is
// populated from the existing file if it was already present (used to seed
// rollState when resuming a CURRENT file across process restarts).
func openBufferedFile(path string) (*bufferedFile, int64, error) {
	f, err := fnc.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Wrapf(err, "stat %s", path)
	}
	return &bufferedFile{f: f, path: path}, info.Size(), nil
}

func (b *bufferedFile) Write(p []byte) (int, error) {
	n, err := b.f.Write(p)
	b.written += uint64(n)
	if err != nil {
		return n, errors.Wrapf(err, "write %s", b.path)
	}
	return n, nil
}

// flush asks the kernel to make buffered data visible without a full fsync.
func (b *bufferedFile) flush() error {
	if err := fnc.FlushHint(b.f); err != nil {
		return errors.Wrapf(err, "flush %s", b.path)
	}
	return nil
}

// dropCache advises the kernel that the written range is unlikely to be
// re-read soon, so it can be evicted from the page cache under memory
// pressure. Called right before a rename-on-rotation handoff, once the old
// file is no longer the active write target.
func (b *bufferedFile) dropCache() error {
	return fnc.DropCache(b.f, 0, 0)
}

func (b *bufferedFile) close() error {
	if err := b.f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", b.path)
	}
	return nil
}
