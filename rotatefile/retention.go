package rotatefile

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// retentionMessage is the bounded-channel protocol between State (producer)
// and the Retention worker goroutine (consumer). act requests a sweep; die
// asks the worker to drain its queue and exit.
type retentionMessage struct {
	act bool
	die bool
}

// Retention runs one background goroutine that compresses newly rotated
// files (gzip, BestSpeed, so it doesn't compete with foreground writers for
// CPU) and prunes old siblings down to its Cleanup policy's limits. Each
// State owns the Retention bound to its own FileSpec and Cleanup; the
// worker does not need to be shared across States to share the day-boundary
// trick SplitAtEveryNewDay uses, so it isn't.
type Retention struct {
	spec    FileSpec
	cleanup Cleanup

	ch   chan retentionMessage
	done chan struct{}
}

// NewRetention starts the background worker for spec under cleanup.
// queueDepth bounds the channel: a burst of rotations beyond this depth
// blocks the rotating goroutine until the worker catches up.
func NewRetention(spec FileSpec, cleanup Cleanup, queueDepth int) *Retention {
	if queueDepth <= 0 {
		queueDepth = 4
	}
	r := &Retention{
		spec:    spec,
		cleanup: cleanup,
		ch:      make(chan retentionMessage, queueDepth),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// notify wakes the worker to re-sweep after a rotation.
func (r *Retention) notify(path string) {
	r.ch <- retentionMessage{act: true}
}

func (r *Retention) run() {
	defer close(r.done)
	for msg := range r.ch {
		if msg.die {
			return
		}
		r.process()
	}
}

// process re-sweeps every rotated sibling on each notification rather than
// acting on just the path that triggered it: as further rotations happen, a
// file already inside the "keep compressed" window ages into the "delete"
// window, and a file that was the single most-recent rotation (meant to
// stay raw) ages into the "keep compressed" window. Only a full re-rank
// gets invariant 6 (the newest L rotated logs stay uncompressed, the active
// file is never touched) right on every call.
func (r *Retention) process() {
	if err := sweepCleanup(r.spec, r.cleanup); err != nil {
		eprintErr(codeRetention, "retention sweep failed", err)
	}
}

// Shutdown asks the worker to drain any already-queued rotations and exit,
// blocking until it has done so. Safe to call once.
func (r *Retention) Shutdown() {
	r.ch <- retentionMessage{die: true}
	<-r.done
}

// compressFile gzips src at BestSpeed into src+".gz", then removes src.
// The compressed file is created and fully written before the source is
// unlinked, so a crash mid-compression leaves the original log file intact
// rather than a truncated gzip with no source to retry from.
func compressFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrapf(err, "open %s for compression", src)
	}
	defer in.Close()

	dst := src + ".gz"
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", dst)
	}

	gw, _ := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return "", errors.Wrapf(err, "compress %s", src)
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return "", errors.Wrapf(err, "finalize gzip %s", dst)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", errors.Wrapf(err, "close %s", dst)
	}

	if err := os.Remove(src); err != nil {
		return "", errors.Wrapf(err, "remove source %s after compression", src)
	}
	return dst, nil
}

// rotatedArtifact is one rotated sibling, compressed or not, ranked by
// sortKey (its path with any ".gz" suffix stripped, so a log and its
// eventual compressed replacement occupy the same position in the
// ordering).
type rotatedArtifact struct {
	path       string
	compressed bool
	sortKey    string
}

// sweepCleanup enumerates every rotated sibling of spec (excluding the
// active CURRENT file, both compressed and not), ranks them newest-to-oldest,
// and brings them into compliance with cleanup's limits in one pass: the
// newest keepLogs stay raw, the next keepGzips are compressed if they
// aren't already, and anything older is removed. Both naming schemes
// (5-digit zero-padded numbers, ISO8601 timestamps) sort correctly as plain
// strings in reverse order, so no parsing is needed to rank them.
func sweepCleanup(spec FileSpec, cleanup Cleanup) error {
	if !cleanup.doCleanup() {
		return nil
	}
	keepLogs, keepGzips := cleanup.limits()
	wantCompressed := cleanup.Kind == CleanupKeepCompressedFiles || cleanup.Kind == CleanupKeepLogAndCompressedFiles

	logPaths, err := filepath.Glob(spec.AsGlob("_r*", ""))
	if err != nil {
		return errors.Wrap(err, "glob rotated log files")
	}
	gzPaths, err := filepath.Glob(spec.AsGlob("_r*", spec.suffix()+".gz"))
	if err != nil {
		return errors.Wrap(err, "glob rotated gzip files")
	}

	currentPath := spec.CurrentPath()
	logPaths = excludePath(logPaths, currentPath)

	artifacts := make([]rotatedArtifact, 0, len(logPaths)+len(gzPaths))
	for _, p := range logPaths {
		artifacts = append(artifacts, rotatedArtifact{path: p, sortKey: p})
	}
	for _, p := range gzPaths {
		artifacts = append(artifacts, rotatedArtifact{path: p, compressed: true, sortKey: strings.TrimSuffix(p, ".gz")})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].sortKey > artifacts[j].sortKey })

	var first error
	for i, a := range artifacts {
		switch {
		case i < keepLogs:
			// Newest keepLogs stay raw; aging further back is the only way
			// an artifact ever needs to change state, so there's nothing to
			// do for one that's already in this window.
		case wantCompressed && i < keepLogs+keepGzips:
			if !a.compressed {
				if _, err := compressFile(a.path); err != nil && first == nil {
					first = err
				}
			}
		default:
			if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) && first == nil {
				first = errors.Wrapf(err, "remove %s", a.path)
			}
		}
	}
	return first
}

func excludePath(paths []string, exclude string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != exclude {
			out = append(out, p)
		}
	}
	return out
}
