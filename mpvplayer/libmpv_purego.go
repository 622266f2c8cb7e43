//go:build (darwin || linux) && (amd64 || arm64)

// libmpv client and render API bindings using purego.

package mpvplayer

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/thesyncim/castkit"
	"github.com/thesyncim/castkit/internal/dl"
)

var (
	mpvOnce    sync.Once
	mpvInitErr error
)

// client API
var (
	mpvCreate            func() uintptr
	mpvSetOptionString   func(ctx uintptr, name, data string) int32
	mpvInitialize        func(ctx uintptr) int32
	mpvCommandAsync      func(ctx uintptr, reply uint64, args unsafe.Pointer) int32
	mpvSetPropertyAsync  func(ctx uintptr, reply uint64, name string, format int32, data unsafe.Pointer) int32
	mpvSetPropertyString func(ctx uintptr, name, data string) int32
	mpvGetProperty       func(ctx uintptr, name string, format int32, data unsafe.Pointer) int32
	mpvObserveProperty   func(ctx uintptr, reply uint64, name string, format int32) int32
	mpvWaitEvent         func(ctx uintptr, timeout float64) uintptr
	mpvSetWakeupCallback func(ctx uintptr, cb uintptr, d uintptr)
	mpvTerminateDestroy  func(ctx uintptr)
	mpvErrorString       func(code int32) uintptr
)

// render API
var (
	mpvRenderContextCreate            func(res *uintptr, ctx uintptr, params unsafe.Pointer) int32
	mpvRenderContextSetUpdateCallback func(rctx uintptr, cb uintptr, d uintptr)
	mpvRenderContextUpdate            func(rctx uintptr) uint64
	mpvRenderContextRender            func(rctx uintptr, params unsafe.Pointer) int32
	mpvRenderContextFree              func(rctx uintptr)
)

const (
	// mpv_event
	offEventID    = 0
	offEventError = 4
	offEventData  = 16

	// mpv_event_property
	offPropName   = 0
	offPropFormat = 8
	offPropData   = 16

	// mpv_node is a union followed by its format.
	sizeofNode    = 16
	offNodeFormat = 8

	// mpv_node_list
	offListNum    = 0
	offListValues = 8
	offListKeys   = 16

	// mpv_render_param_type
	renderParamInvalid          = 0
	renderParamAPIType          = 1
	renderParamOpenGLInitParams = 2
	renderParamOpenGLFBO        = 3
	renderParamFlipY            = 4
	renderParamAdvancedControl  = 10
)

// renderParam mirrors mpv_render_param.
type renderParam struct {
	typ  int32
	_    int32
	data unsafe.Pointer
}

// openGLInitParams mirrors mpv_opengl_init_params.
type openGLInitParams struct {
	getProcAddress    uintptr
	getProcAddressCtx uintptr
}

// openGLFBO mirrors mpv_opengl_fbo.
type openGLFBO struct {
	fbo            int32
	w, h           int32
	internalFormat int32
}

func loadLibmpv(path string) error {
	mpvOnce.Do(func() {
		mpvInitErr = openLibmpv(path)
	})
	return mpvInitErr
}

func openLibmpv(path string) error {
	lib := dl.Library{
		Base:     "mpv",
		Versions: []string{"2", "1", ""},
		EnvVars:  []string{castkit.EnvMPVLibPath},
	}
	if path != "" {
		lib.Dirs = []string{path}
	}
	h, _, err := dl.Open(lib)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLibmpvUnavailable, err)
	}
	if err := loadMpvSymbols(h); err != nil {
		purego.Dlclose(h)
		return fmt.Errorf("%w: %v", ErrLibmpvUnavailable, err)
	}
	return nil
}

func loadMpvSymbols(h uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("missing symbol: %v", r)
		}
	}()

	purego.RegisterLibFunc(&mpvCreate, h, "mpv_create")
	purego.RegisterLibFunc(&mpvSetOptionString, h, "mpv_set_option_string")
	purego.RegisterLibFunc(&mpvInitialize, h, "mpv_initialize")
	purego.RegisterLibFunc(&mpvCommandAsync, h, "mpv_command_async")
	purego.RegisterLibFunc(&mpvSetPropertyAsync, h, "mpv_set_property_async")
	purego.RegisterLibFunc(&mpvSetPropertyString, h, "mpv_set_property_string")
	purego.RegisterLibFunc(&mpvGetProperty, h, "mpv_get_property")
	purego.RegisterLibFunc(&mpvObserveProperty, h, "mpv_observe_property")
	purego.RegisterLibFunc(&mpvWaitEvent, h, "mpv_wait_event")
	purego.RegisterLibFunc(&mpvSetWakeupCallback, h, "mpv_set_wakeup_callback")
	purego.RegisterLibFunc(&mpvTerminateDestroy, h, "mpv_terminate_destroy")
	purego.RegisterLibFunc(&mpvErrorString, h, "mpv_error_string")

	purego.RegisterLibFunc(&mpvRenderContextCreate, h, "mpv_render_context_create")
	purego.RegisterLibFunc(&mpvRenderContextSetUpdateCallback, h, "mpv_render_context_set_update_callback")
	purego.RegisterLibFunc(&mpvRenderContextUpdate, h, "mpv_render_context_update")
	purego.RegisterLibFunc(&mpvRenderContextRender, h, "mpv_render_context_render")
	purego.RegisterLibFunc(&mpvRenderContextFree, h, "mpv_render_context_free")
	return nil
}

// mpvError is a negative mpv_error code.
type mpvError int32

func (e mpvError) Error() string {
	if mpvErrorString != nil {
		if s := dl.GoString(mpvErrorString(int32(e))); s != "" {
			return s
		}
	}
	return fmt.Sprintf("mpv error %d", int32(e))
}

func check(rc int32) error {
	if rc < 0 {
		return mpvError(rc)
	}
	return nil
}

// Callbacks are created once per process and dispatch on the userdata
// value, which is a key into callbackFuncs.
var (
	callbackOnce     sync.Once
	wakeupCallback   uintptr
	updateCallback   uintptr
	procAddrCallback uintptr

	callbackMu    sync.RWMutex
	callbackFuncs = make(map[uintptr]func())
	callbackNext  uintptr
)

func initCallbacks() {
	callbackOnce.Do(func() {
		wakeupCallback = purego.NewCallback(dispatchCallback)
		updateCallback = purego.NewCallback(dispatchCallback)
		procAddrCallback = purego.NewCallback(glProcAddress)
	})
}

func dispatchCallback(key uintptr) {
	callbackMu.RLock()
	fn := callbackFuncs[key]
	callbackMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func glProcAddress(_ uintptr, name uintptr) uintptr {
	return uintptr(sdl.GLGetProcAddress(dl.GoString(name)))
}

func registerCallback(fn func()) uintptr {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	callbackNext++
	callbackFuncs[callbackNext] = fn
	return callbackNext
}

func unregisterCallback(key uintptr) {
	if key == 0 {
		return
	}
	callbackMu.Lock()
	delete(callbackFuncs, key)
	callbackMu.Unlock()
}

// libmpvCore is a core backed by an mpv_handle.
type libmpvCore struct {
	handle    uintptr
	wakeupKey uintptr
}

func newLibmpvCore(cfg Config) (core, error) {
	if err := loadLibmpv(cfg.LibPath); err != nil {
		return nil, err
	}
	initCallbacks()
	h := mpvCreate()
	if h == 0 {
		return nil, fmt.Errorf("mpv_create failed")
	}
	return &libmpvCore{handle: h}, nil
}

func (c *libmpvCore) SetOption(name, value string) error {
	return check(mpvSetOptionString(c.handle, name, value))
}

func (c *libmpvCore) Initialize() error {
	return check(mpvInitialize(c.handle))
}

func (c *libmpvCore) Command(args ...string) error {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	argv := make([]uintptr, len(args)+1)
	for i, a := range args {
		b := append([]byte(a), 0)
		pinner.Pin(&b[0])
		argv[i] = uintptr(unsafe.Pointer(&b[0]))
	}
	pinner.Pin(&argv[0])
	return check(mpvCommandAsync(c.handle, 0, unsafe.Pointer(&argv[0])))
}

func (c *libmpvCore) SetDouble(name string, v float64) error {
	return check(mpvSetPropertyAsync(c.handle, 0, name, int32(formatDouble), unsafe.Pointer(&v)))
}

func (c *libmpvCore) SetFlag(name string, v bool) error {
	var flag int32
	if v {
		flag = 1
	}
	return check(mpvSetPropertyAsync(c.handle, 0, name, int32(formatFlag), unsafe.Pointer(&flag)))
}

func (c *libmpvCore) SetString(name, v string) error {
	return check(mpvSetPropertyString(c.handle, name, v))
}

func (c *libmpvCore) GetDouble(name string) (float64, error) {
	var v float64
	err := check(mpvGetProperty(c.handle, name, int32(formatDouble), unsafe.Pointer(&v)))
	return v, err
}

func (c *libmpvCore) GetFlag(name string) (bool, error) {
	var v int32
	err := check(mpvGetProperty(c.handle, name, int32(formatFlag), unsafe.Pointer(&v)))
	return v != 0, err
}

func (c *libmpvCore) GetInt64(name string) (int64, error) {
	var v int64
	err := check(mpvGetProperty(c.handle, name, int32(formatInt64), unsafe.Pointer(&v)))
	return v, err
}

func (c *libmpvCore) Observe(name string, f format) error {
	return check(mpvObserveProperty(c.handle, 0, name, int32(f)))
}

func (c *libmpvCore) WaitEvent(timeout float64) event {
	p := mpvWaitEvent(c.handle, timeout)
	if p == 0 {
		return event{ID: eventNone}
	}
	ev := event{
		ID:    eventID(read[int32](p, offEventID)),
		Error: read[int32](p, offEventError),
	}
	if ev.ID == eventPropertyChange {
		if prop := read[uintptr](p, offEventData); prop != 0 {
			ev.Name = dl.GoString(read[uintptr](prop, offPropName))
			ev.Value = readValue(format(read[int32](prop, offPropFormat)), read[uintptr](prop, offPropData))
		}
	}
	return ev
}

func (c *libmpvCore) SetWakeup(fn func()) {
	unregisterCallback(c.wakeupKey)
	c.wakeupKey = 0
	if fn == nil {
		mpvSetWakeupCallback(c.handle, 0, 0)
		return
	}
	c.wakeupKey = registerCallback(fn)
	mpvSetWakeupCallback(c.handle, wakeupCallback, c.wakeupKey)
}

func (c *libmpvCore) NewRenderContext() (renderContext, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	apiType := append([]byte("opengl"), 0)
	initParams := &openGLInitParams{getProcAddress: procAddrCallback}
	advanced := new(int32)
	*advanced = 1
	pinner.Pin(&apiType[0])
	pinner.Pin(initParams)
	pinner.Pin(advanced)

	params := []renderParam{
		{typ: renderParamAPIType, data: unsafe.Pointer(&apiType[0])},
		{typ: renderParamOpenGLInitParams, data: unsafe.Pointer(initParams)},
		{typ: renderParamAdvancedControl, data: unsafe.Pointer(advanced)},
		{typ: renderParamInvalid},
	}
	pinner.Pin(&params[0])

	var rctx uintptr
	if err := check(mpvRenderContextCreate(&rctx, c.handle, unsafe.Pointer(&params[0]))); err != nil {
		return nil, fmt.Errorf("mpv_render_context_create: %w", err)
	}
	return &libmpvRender{handle: rctx}, nil
}

func (c *libmpvCore) Destroy() {
	if c.handle == 0 {
		return
	}
	mpvSetWakeupCallback(c.handle, 0, 0)
	unregisterCallback(c.wakeupKey)
	c.wakeupKey = 0
	mpvTerminateDestroy(c.handle)
	c.handle = 0
}

// libmpvRender is an mpv_render_context bound to an OpenGL context.
type libmpvRender struct {
	handle    uintptr
	updateKey uintptr
}

func (r *libmpvRender) SetUpdateCallback(fn func()) {
	unregisterCallback(r.updateKey)
	r.updateKey = 0
	if fn == nil {
		mpvRenderContextSetUpdateCallback(r.handle, 0, 0)
		return
	}
	r.updateKey = registerCallback(fn)
	mpvRenderContextSetUpdateCallback(r.handle, updateCallback, r.updateKey)
}

func (r *libmpvRender) Update() uint64 {
	return mpvRenderContextUpdate(r.handle)
}

func (r *libmpvRender) Render(fbo, w, h int32, flipY bool) error {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	target := &openGLFBO{fbo: fbo, w: w, h: h}
	flip := new(int32)
	if flipY {
		*flip = 1
	}
	pinner.Pin(target)
	pinner.Pin(flip)

	params := []renderParam{
		{typ: renderParamOpenGLFBO, data: unsafe.Pointer(target)},
		{typ: renderParamFlipY, data: unsafe.Pointer(flip)},
		{typ: renderParamInvalid},
	}
	pinner.Pin(&params[0])
	return check(mpvRenderContextRender(r.handle, unsafe.Pointer(&params[0])))
}

func (r *libmpvRender) Free() {
	if r.handle == 0 {
		return
	}
	mpvRenderContextSetUpdateCallback(r.handle, 0, 0)
	unregisterCallback(r.updateKey)
	r.updateKey = 0
	mpvRenderContextFree(r.handle)
	r.handle = 0
}

func read[T any](base, off uintptr) T {
	return *(*T)(unsafe.Pointer(base + off))
}

// readValue converts property data of format f to a Go value.
func readValue(f format, data uintptr) any {
	if data == 0 {
		return nil
	}
	switch f {
	case formatString:
		return dl.GoString(read[uintptr](data, 0))
	case formatFlag:
		return read[int32](data, 0) != 0
	case formatInt64:
		return read[int64](data, 0)
	case formatDouble:
		return read[float64](data, 0)
	case formatNode:
		return readNode(data)
	}
	return nil
}

// readNode converts an mpv_node tree.
func readNode(node uintptr) any {
	f := format(read[int32](node, offNodeFormat))
	switch f {
	case formatString, formatFlag, formatInt64, formatDouble:
		return readValue(f, node)
	case formatNodeArr, formatNodeMap:
		list := read[uintptr](node, 0)
		if list == 0 {
			return nil
		}
		n := int(read[int32](list, offListNum))
		values := read[uintptr](list, offListValues)
		if f == formatNodeArr {
			out := make([]any, n)
			for i := range out {
				out[i] = readNode(values + uintptr(i)*sizeofNode)
			}
			return out
		}
		keys := read[uintptr](list, offListKeys)
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			key := dl.GoString(read[uintptr](keys, uintptr(i)*8))
			out[key] = readNode(values + uintptr(i)*sizeofNode)
		}
		return out
	}
	return nil
}
