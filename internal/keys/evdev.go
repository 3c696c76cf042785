package keys

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocRead      = 2
	evdevType    = 'E'
	nrGetKey     = 0x18
	nrGetName    = 0x06
	nameBufBytes = 256
)

var discoveryGlobs = []string{
	"/dev/input/by-id/*-event-kbd",
	"/dev/input/by-path/*-event-kbd",
}

// evioc builds an _IOC(_IOC_READ, 'E', nr, size) request number.
func evioc(nr uintptr, size uintptr) uintptr {
	return iocRead<<30 | size<<16 | evdevType<<8 | nr
}

// Keyboard is one discovered evdev keyboard node.
type Keyboard struct {
	Path     string
	Name     string
	Readable bool
	Err      error
}

// DiscoverKeyboards resolves keyboard event nodes. Explicit paths win over
// discovery; symlinks that point at the same node are deduplicated.
func DiscoverKeyboards(explicit []string) ([]string, error) {
	candidates := make([]string, 0, len(explicit))
	for _, path := range explicit {
		if path = strings.TrimSpace(path); path != "" {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		for _, pattern := range discoveryGlobs {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			candidates = append(candidates, matches...)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	paths := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			resolved = candidate
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		paths = append(paths, resolved)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, errors.New("no keyboard devices found under /dev/input")
	}
	return paths, nil
}

// ListKeyboards reports every discovered keyboard with its name and whether it
// can be opened for reading.
func ListKeyboards(explicit []string) ([]Keyboard, error) {
	paths, err := DiscoverKeyboards(explicit)
	if err != nil {
		return nil, err
	}

	keyboards := make([]Keyboard, 0, len(paths))
	for _, path := range paths {
		kb := Keyboard{Path: path}
		fd, err := openDevice(path)
		if err != nil {
			kb.Err = err
			keyboards = append(keyboards, kb)
			continue
		}
		kb.Readable = true
		kb.Name, _ = deviceName(fd)
		_ = unix.Close(fd)
		keyboards = append(keyboards, kb)
	}
	return keyboards, nil
}

// EvdevReader reads global key state from evdev nodes with EVIOCGKEY. Key
// state is OR-ed across devices so either keyboard can drive the loop.
type EvdevReader struct {
	mu    sync.Mutex
	paths []string
	fds   []int
}

// OpenEvdev opens every readable path. It fails only when none can be opened.
func OpenEvdev(paths []string) (*EvdevReader, error) {
	reader := &EvdevReader{}
	var errs []error
	for _, path := range paths {
		fd, err := openDevice(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reader.paths = append(reader.paths, path)
		reader.fds = append(reader.fds, fd)
	}
	if len(reader.fds) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no keyboard devices given")
		}
		return nil, fmt.Errorf("open keyboards: %w", errors.Join(errs...))
	}
	return reader, nil
}

// Paths returns the device nodes currently held open.
func (r *EvdevReader) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Read ORs the pressed-key bitmap of every open device. Devices that fail are
// skipped; an error is returned only when every device failed.
func (r *EvdevReader) Read() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var merged State
	if len(r.fds) == 0 {
		return merged, errors.New("keyboard reader is closed")
	}

	var errs []error
	for i, fd := range r.fds {
		state, err := readKeyState(fd)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.paths[i], err))
			continue
		}
		merged.Merge(state)
	}
	if len(errs) == len(r.fds) {
		return merged, errors.Join(errs...)
	}
	return merged, nil
}

// Close releases every device descriptor.
func (r *EvdevReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, fd := range r.fds {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	r.fds = nil
	r.paths = nil
	return errors.Join(errs...)
}

func openDevice(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

func readKeyState(fd int) (State, error) {
	var state State
	req := evioc(nrGetKey, unsafe.Sizeof(state))
	if err := ioctl(fd, req, unsafe.Pointer(&state[0])); err != nil {
		return state, fmt.Errorf("EVIOCGKEY: %w", err)
	}
	return state, nil
}

func deviceName(fd int) (string, error) {
	var buf [nameBufBytes]byte
	if err := ioctl(fd, evioc(nrGetName, nameBufBytes), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("EVIOCGNAME: %w", err)
	}
	return unix.ByteSliceToString(buf[:]), nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
