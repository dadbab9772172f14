// Package native loads a compiled library artifact at run time and exposes
// its entry points as typed Go functions.
//
// Buffers are passed to C as pointers into Go slices. The library must not
// retain them past the call.
package native

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <signal.h>
#include <stdio.h>
#include <stdlib.h>

typedef float (*get_pixel_value_fn)(const float *, int, int, int, int);
typedef void (*apply_threshold_fn)(float *, int, int, int);
typedef void (*scale_image_fn)(float *, const float *, int, int);
typedef void (*convolve_fn)(float *, const float *, int, int, const float *, int, int);
typedef void (*gradient_magnitude_fn)(float *, const float *, const float *, int, int);
typedef float *(*read_image_fn)(const char *, int *, int *);
typedef void (*write_image_fn)(const float *, int, int, const char *);
typedef int (*main_fn)(int, char **);

static float call_get_pixel_value(void *f, const float *img, int w, int h, int x, int y) {
	return ((get_pixel_value_fn)f)(img, w, h, x, y);
}

static void call_apply_threshold(void *f, float *img, int w, int h, int t) {
	((apply_threshold_fn)f)(img, w, h, t);
}

static void call_scale_image(void *f, float *result, const float *img, int w, int h) {
	((scale_image_fn)f)(result, img, w, h);
}

static void call_convolve(void *f, float *result, const float *img, int w, int h,
                          const float *k, int kw, int kh) {
	((convolve_fn)f)(result, img, w, h, k, kw, kh);
}

static void call_gradient_magnitude(void *f, float *result, const float *dx, const float *dy,
                                    int w, int h) {
	((gradient_magnitude_fn)f)(result, dx, dy, w, h);
}

static float *call_read_image(void *f, const char *path, int *w, int *h) {
	return ((read_image_fn)f)(path, w, h);
}

static void call_write_image(void *f, const float *img, int w, int h, const char *path) {
	((write_image_fn)f)(img, w, h, path);
}

static int call_main(void *f, int argc, char **argv) {
	return ((main_fn)f)(argc, argv);
}

static const char *last_dl_error(void) {
	const char *msg = dlerror();
	return msg ? msg : "unknown dynamic loader error";
}

static void flush_stdio(void) {
	fflush(NULL);
}

static void die_on_fault(void) {
	signal(SIGSEGV, SIG_DFL);
	signal(SIGBUS, SIG_DFL);
	signal(SIGFPE, SIG_DFL);
	signal(SIGILL, SIG_DFL);
	signal(SIGABRT, SIG_DFL);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrClosed is returned when an entry point is requested from a closed library.
var ErrClosed = errors.New("native: library is closed")

// Entry point names exported by the library modules.
const (
	SymGetPixelValue     = "get_pixel_value"
	SymApplyThreshold    = "apply_threshold"
	SymScaleImage        = "scale_image"
	SymConvolve          = "convolve"
	SymGradientMagnitude = "gradient_magnitude"
	SymReadImage         = "read_image_from_file"
	SymWriteImage        = "write_image_to_file"
	SymMain              = "main"
)

// Typed entry points. Widths and heights describe the row-major buffers.
type (
	GetPixelValueFunc     func(img []float32, w, h, x, y int) float32
	ApplyThresholdFunc    func(img []float32, w, h, threshold int)
	ScaleImageFunc        func(result, img []float32, w, h int)
	ConvolveFunc          func(result, img []float32, w, h int, kernel []float32, kw, kh int)
	GradientMagnitudeFunc func(result, dx, dy []float32, w, h int)
	// ReadImageFunc returns ok=false when the library returned NULL.
	ReadImageFunc  func(path string) (pixels []float32, w, h int, ok bool)
	WriteImageFunc func(img []float32, w, h int, path string)
	MainFunc       func(args []string) int
)

// Library is a loaded shared object.
type Library struct {
	path string

	mu     sync.Mutex
	handle unsafe.Pointer
}

// Open loads the shared object at path with eager symbol binding.
func Open(path string) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("failed to load %s: %s", path, C.GoString(C.last_dl_error()))
	}
	return &Library{path: path, handle: handle}, nil
}

// Close unloads the library. Functions obtained from it must not be called
// afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil
	}
	rc := C.dlclose(l.handle)
	l.handle = nil
	if rc != 0 {
		return fmt.Errorf("failed to unload %s: %s", l.path, C.GoString(C.last_dl_error()))
	}
	return nil
}

// Symbol resolves a raw entry point.
func (l *Library) Symbol(name string) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil, ErrClosed
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror()
	sym := C.dlsym(l.handle, cname)
	if sym == nil {
		return nil, fmt.Errorf("%s does not export %s: %s", l.path, name, C.GoString(C.last_dl_error()))
	}
	return sym, nil
}

// GetPixelValue binds get_pixel_value.
func (l *Library) GetPixelValue() (GetPixelValueFunc, error) {
	fn, err := l.Symbol(SymGetPixelValue)
	if err != nil {
		return nil, err
	}
	return func(img []float32, w, h, x, y int) float32 {
		return float32(C.call_get_pixel_value(fn, floatPtr(img), C.int(w), C.int(h), C.int(x), C.int(y)))
	}, nil
}

// ApplyThreshold binds apply_threshold. The image is modified in place.
func (l *Library) ApplyThreshold() (ApplyThresholdFunc, error) {
	fn, err := l.Symbol(SymApplyThreshold)
	if err != nil {
		return nil, err
	}
	return func(img []float32, w, h, threshold int) {
		C.call_apply_threshold(fn, floatPtr(img), C.int(w), C.int(h), C.int(threshold))
	}, nil
}

// ScaleImage binds scale_image.
func (l *Library) ScaleImage() (ScaleImageFunc, error) {
	fn, err := l.Symbol(SymScaleImage)
	if err != nil {
		return nil, err
	}
	return func(result, img []float32, w, h int) {
		C.call_scale_image(fn, floatPtr(result), floatPtr(img), C.int(w), C.int(h))
	}, nil
}

// Convolve binds convolve.
func (l *Library) Convolve() (ConvolveFunc, error) {
	fn, err := l.Symbol(SymConvolve)
	if err != nil {
		return nil, err
	}
	return func(result, img []float32, w, h int, kernel []float32, kw, kh int) {
		C.call_convolve(fn, floatPtr(result), floatPtr(img), C.int(w), C.int(h),
			floatPtr(kernel), C.int(kw), C.int(kh))
	}, nil
}

// GradientMagnitude binds gradient_magnitude.
func (l *Library) GradientMagnitude() (GradientMagnitudeFunc, error) {
	fn, err := l.Symbol(SymGradientMagnitude)
	if err != nil {
		return nil, err
	}
	return func(result, dx, dy []float32, w, h int) {
		C.call_gradient_magnitude(fn, floatPtr(result), floatPtr(dx), floatPtr(dy), C.int(w), C.int(h))
	}, nil
}

// ReadImage binds read_image_from_file. The returned pixels are copied out
// of library memory; the library's buffer is left to the process exit.
func (l *Library) ReadImage() (ReadImageFunc, error) {
	fn, err := l.Symbol(SymReadImage)
	if err != nil {
		return nil, err
	}
	return func(path string) ([]float32, int, int, bool) {
		cpath := C.CString(path)
		defer C.free(unsafe.Pointer(cpath))

		var cw, ch C.int
		ptr := C.call_read_image(fn, cpath, &cw, &ch)
		w, h := int(cw), int(ch)
		if ptr == nil {
			return nil, w, h, false
		}
		if w <= 0 || h <= 0 {
			return []float32{}, w, h, true
		}
		src := unsafe.Slice((*float32)(unsafe.Pointer(ptr)), w*h)
		pixels := make([]float32, len(src))
		copy(pixels, src)
		return pixels, w, h, true
	}, nil
}

// WriteImage binds write_image_to_file.
func (l *Library) WriteImage() (WriteImageFunc, error) {
	fn, err := l.Symbol(SymWriteImage)
	if err != nil {
		return nil, err
	}
	return func(img []float32, w, h int, path string) {
		cpath := C.CString(path)
		defer C.free(unsafe.Pointer(cpath))
		C.call_write_image(fn, floatPtr(img), C.int(w), C.int(h), cpath)
	}, nil
}

// Main binds the program entry point of an executable module.
func (l *Library) Main() (MainFunc, error) {
	fn, err := l.Symbol(SymMain)
	if err != nil {
		return nil, err
	}
	return func(args []string) int {
		argv := newArgv(args)
		defer argv.free()
		return int(C.call_main(fn, C.int(len(args)), argv.ptr))
	}, nil
}

// DieOnFault restores the default disposition of the hardware fault
// signals, so a fault inside library code terminates the process with that
// signal instead of a runtime crash report and exit status 2. It is meant
// for sandbox children that run exactly one case.
func DieOnFault() {
	C.die_on_fault()
}

// FlushStdio flushes the C standard streams. Go's os.Exit does not, so
// library output buffered by printf is lost unless this runs first.
func FlushStdio() {
	C.flush_stdio()
}

func floatPtr(s []float32) *C.float {
	if len(s) == 0 {
		return nil
	}
	return (*C.float)(unsafe.Pointer(&s[0]))
}

// argv is a NULL-terminated C string array.
type argv struct {
	ptr  **C.char
	strs []*C.char
}

func newArgv(args []string) *argv {
	size := C.size_t(len(args)+1) * C.size_t(unsafe.Sizeof((*C.char)(nil)))
	ptr := (**C.char)(C.malloc(size))
	slots := unsafe.Slice(ptr, len(args)+1)
	a := &argv{ptr: ptr, strs: make([]*C.char, len(args))}
	for i, s := range args {
		a.strs[i] = C.CString(s)
		slots[i] = a.strs[i]
	}
	slots[len(args)] = nil
	return a
}

func (a *argv) free() {
	for _, s := range a.strs {
		C.free(unsafe.Pointer(s))
	}
	C.free(unsafe.Pointer(a.ptr))
}
