package rotatefile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Config pins down everything State needs to manage one rotating file:
// where it lives, when it rotates, how rotated siblings are named, and what
// retention policy governs them.
type Config struct {
	Spec      FileSpec
	Criterion Criterion
	Naming    Naming
	Cleanup   Cleanup

	// Append controls whether a pre-existing CURRENT file (left over from a
	// prior process) is appended to (true) or first rotated away to its
	// rotated name so that writing starts in an empty CURRENT file (false).
	Append bool

	// Retention, if non-nil, receives rotated-file notifications so it can
	// compress and prune in the background. A nil Retention disables
	// background cleanup even if Cleanup.doCleanup() is true; State then
	// performs cleanup synchronously on the rotating goroutine instead.
	Retention *Retention

	// SymlinkPath, if non-empty, is kept pointing at the active CURRENT
	// file: created on open and repointed after every rotation. Best
	// effort and a no-op on Windows; failures go to the diagnostic channel
	// only, never returned to the caller.
	SymlinkPath string
}

// State is the active write target behind a rotating file sink: it owns the
// currently-open file, decides when to rotate, and performs the
// rename-not-copy-truncate handoff. Every exported method takes State's own
// mutex, so calls from several goroutines are serialized; the root
// package's write frontend additionally funnels writes through its own
// mutex or a single ring consumer.
type State struct {
	mu sync.Mutex

	cfg Config

	file      *bufferedFile
	createdAt time.Time
	roll      rollState
	nextIdx   uint32 // next numeric infix to assign, Naming == NamingNumbers
}

// NewState opens (or creates) the CURRENT file per cfg and returns a ready
// State. If a CURRENT file already exists and cfg.Append is true, its
// existing size seeds the size-based rollState so a restart doesn't reset
// the size budget; same-day crash-restarts similarly reuse the file's mtime
// as createdAt so an age criterion isn't fooled into rotating immediately.
func NewState(cfg Config) (*State, error) {
	path := cfg.Spec.CurrentPath()
	if err := os.MkdirAll(cfg.Spec.Directory, 0755); err != nil {
		return nil, errors.Wrapf(err, "create directory %s", cfg.Spec.Directory)
	}

	existed := false
	if _, err := os.Stat(path); err == nil {
		existed = true
	}

	if existed && !cfg.Append {
		prior := &State{cfg: cfg, createdAt: nowLocalOrUTC()}
		if info, err := os.Stat(path); err == nil {
			prior.createdAt = info.ModTime()
		}
		prior.nextIdx = prior.discoverNextIdx()
		rotated, err := prior.reserveRotatedPath()
		if err == nil {
			err = os.Rename(path, rotated)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "rotate %s away", path)
		}
		existed = false
	}

	bf, size, err := openBufferedFile(path)
	if err != nil {
		return nil, err
	}

	createdAt := nowLocalOrUTC()
	if existed {
		if info, err := os.Stat(path); err == nil {
			createdAt = info.ModTime()
		}
	}

	s := &State{
		cfg:       cfg,
		file:      bf,
		createdAt: createdAt,
		roll:      newRollState(cfg.Criterion, uint64(size)),
	}
	if cfg.Naming.Kind == NamingNumbers {
		s.nextIdx = s.discoverNextIdx()
	}
	s.maintainSymlink()
	return s, nil
}

// maintainSymlink repoints cfg.SymlinkPath at the active file, ignoring
// everything except logging failures: symlink maintenance is a convenience,
// never a correctness requirement.
func (s *State) maintainSymlink() {
	if s.cfg.SymlinkPath == "" || runtime.GOOS == "windows" {
		return
	}
	target := s.file.path
	_ = os.Remove(s.cfg.SymlinkPath)
	if err := os.Symlink(target, s.cfg.SymlinkPath); err != nil {
		eprintErr(codeSymlink, "failed to maintain current-file symlink", err)
	}
}

// discoverNextIdx globs existing numbered siblings to avoid reusing an index
// already on disk, so a restart doesn't clobber a prior rotated file.
func (s *State) discoverNextIdx() uint32 {
	pattern := s.cfg.Spec.AsGlob("_r[0-9][0-9][0-9][0-9][0-9]", "")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return 0
	}
	max := uint32(0)
	found := false
	for _, m := range matches {
		base := filepath.Base(m)
		i := strings.Index(base, "_r")
		if i < 0 || i+7 > len(base) {
			continue
		}
		digits := base[i+2 : i+7]
		n, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			continue
		}
		if !found || uint32(n) > max {
			max = uint32(n)
			found = true
		}
	}
	if !found {
		return 0
	}
	return max + 1
}

// Write appends p to the active file, rotating first if the configured
// Criterion says the current file is due. A rotation failure is logged to
// the diagnostic channel and swallowed (Write falls back to the still-open
// current file); only a failure of the write itself is returned, so
// callers may choose to keep writing subsequent records even after a
// single write fails.
func (s *State) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roll.rotationNecessary(s.createdAt) {
		if err := s.rotateLocked(); err != nil {
			eprintErr(codeRotate, "rotation failed, continuing to write to current file", err)
		}
	}

	n, err := s.file.Write(p)
	s.roll.addWritten(uint64(n))
	return n, err
}

// rotateLocked performs the rename-not-copy-truncate handoff: the live file
// is renamed off to its rotated name, a fresh CURRENT file is opened in its
// place, and (if configured) the rotated file is handed to the background
// Retention worker. Must be called with s.mu held.
func (s *State) rotateLocked() error {
	oldPath := s.cfg.Spec.CurrentPath()

	if err := s.file.flush(); err != nil {
		eprintErr(codeFlush, "flush before rotation failed", err)
	}
	if err := s.file.dropCache(); err != nil {
		eprintErr(codeFlush, "drop page cache before rotation failed", err)
	}
	if err := s.file.close(); err != nil {
		return errors.Wrap(err, "close current file before rotation")
	}

	rotatedPath, err := s.reserveRotatedPath()
	if err != nil {
		// Could not settle on a rotated name; reopen the same CURRENT path
		// so writes are not lost, and surface the error.
		bf, _, reopenErr := openBufferedFile(oldPath)
		if reopenErr == nil {
			s.file = bf
		}
		return err
	}

	if err := os.Rename(oldPath, rotatedPath); err != nil && !os.IsNotExist(err) {
		bf, _, reopenErr := openBufferedFile(oldPath)
		if reopenErr == nil {
			s.file = bf
		}
		return errors.Wrapf(err, "rename %s to %s", oldPath, rotatedPath)
	}

	bf, _, err := openBufferedFile(oldPath)
	if err != nil {
		return errors.Wrap(err, "open fresh current file after rotation")
	}
	s.file = bf
	s.createdAt = nowLocalOrUTC()
	s.roll.resetSize()
	s.maintainSymlink()

	if s.cfg.Retention != nil && s.cfg.Cleanup.doCleanup() {
		s.cfg.Retention.notify(rotatedPath)
	} else if s.cfg.Cleanup.doCleanup() {
		if err := sweepCleanup(s.cfg.Spec, s.cfg.Cleanup); err != nil {
			eprintErr(codeRetention, "synchronous cleanup failed", err)
		}
	}
	return nil
}

// reserveRotatedPath computes the destination name for the file currently
// being rotated out, without touching the filesystem beyond the bookkeeping
// needed to avoid colliding with an existing name.
func (s *State) reserveRotatedPath() (string, error) {
	switch s.cfg.Naming.Kind {
	case NamingNumbers:
		idx := s.nextIdx
		s.nextIdx++
		return s.cfg.Spec.AsPath(NumberInfix(idx)), nil
	case NamingTimestamps:
		return s.reserveTimestampPath()
	default:
		return "", errors.New("unknown naming kind")
	}
}

// reserveTimestampPath formats createdAt as an ISO8601 infix with a
// mandatory-sign hour-only UTC offset and, if a file with that exact name or
// any ".restart-NNNN" sibling of it already exists (two rotations inside the
// same second, or a restart racing a prior run), appends a ".restart-NNNN"
// tiebreak suffix. The tiebreak
// number starts one past the largest ".restart-NNNN" sibling already on
// disk, not at zero, so a gap left by retention cleanup (e.g. ".restart-0000"
// removed while ".restart-0001" survives) never reuses a number smaller than
// a surviving sibling, which would otherwise sort before it.
func (s *State) reserveTimestampPath() (string, error) {
	offset := time.FixedZone("", s.cfg.Naming.UTCOffsetSeconds)
	stamp := s.createdAt.In(offset).Format("_r2006-01-02T15:04:05-07")

	base := s.cfg.Spec.AsPath(stamp)
	next := s.nextRestartNumber(stamp)
	if _, err := os.Stat(base); os.IsNotExist(err) && next == 0 {
		return base, nil
	}

	for n := next; n <= 9999; n++ {
		candidate := s.cfg.Spec.AsPath(stamp + restartSuffix(n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.New("exhausted restart tiebreak suffixes for timestamped rotation")
}

// nextRestartNumber globs existing ".restart-NNNN" siblings of stamp and
// returns one past the largest number found, or 0 if none exist.
func (s *State) nextRestartNumber(stamp string) int {
	pattern := s.cfg.Spec.AsGlob(stamp+".restart-[0-9][0-9][0-9][0-9]", "")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return 0
	}
	max := -1
	for _, m := range matches {
		i := strings.LastIndex(m, ".restart-")
		if i < 0 {
			continue
		}
		digits := strings.TrimSuffix(m[i+len(".restart-"):], "."+s.cfg.Spec.suffix())
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

func restartSuffix(n int) string {
	return fmt.Sprintf(".restart-%04d", n)
}

// Flush makes the active file's buffered writes visible without closing it.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.flush()
}

// Sync escalates past Flush to a full fsync of the active file, for callers
// that need a stronger durability guarantee than the page-cache visibility
// Flush provides. Not called implicitly anywhere on the write path.
func (s *State) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.f.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", s.file.path)
	}
	return nil
}

// CurrentFilename returns the path of the file currently open for writing.
func (s *State) CurrentFilename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.path
}

// Close flushes and closes the active file, and stops the Retention worker
// if one is configured (State is assumed to be the sole owner of the
// Retention it was built with). It does not rotate or prune rotated
// siblings beyond what the Retention worker's own drain already did.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.flush(); err != nil {
		eprintErr(codeFlush, "flush on close failed", err)
	}
	if s.cfg.Retention != nil {
		s.cfg.Retention.Shutdown()
	}
	return s.file.close()
}

// ValidateLogs is a test hook: it reads the active file line by line against
// expected, a slice of 3-substring tuples. The i-th line must contain each
// of the three substrings of expected[i], in any position; after the last expected line,
// the file must have no further lines. It is not invoked on any write path.
func (s *State) ValidateLogs(expected [][3]string) error {
	s.mu.Lock()
	path := s.file.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "validate logs: open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i, triple := range expected {
		if !scanner.Scan() {
			return errors.Errorf("validate logs: expected %d lines, file has only %d", len(expected), i)
		}
		line := scanner.Text()
		for _, substr := range triple {
			if !strings.Contains(line, substr) {
				return errors.Errorf("validate logs: line %d %q does not contain %q", i, line, substr)
			}
		}
	}
	if scanner.Scan() {
		return errors.Errorf("validate logs: file has more than the expected %d lines, found extra %q", len(expected), scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "validate logs: scan")
	}
	return nil
}
