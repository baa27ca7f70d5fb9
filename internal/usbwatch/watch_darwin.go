package usbwatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/phinze/mixdeck/internal/logger"
)

type (
	cfAllocatorRef  uintptr
	cfIndex         int64
	cfNumberRef     uintptr
	cfRunLoopRef    uintptr
	cfStringRef     uintptr
	cfTypeRef       uintptr
	hidDeviceRef    uintptr
	hidManagerRef   uintptr
	ioOptionBits    uint32
	ioReturn        int32
	cfEncoding      uint32
	cfDictionaryRef uintptr
)

const (
	cfAllocatorDefault cfAllocatorRef = 0
	cfNumberSInt16     cfIndex        = 2
	cfEncodingUTF8     cfEncoding     = 0x08000100
	ioOptionsNone      ioOptionBits   = 0
	ioSuccess          ioReturn       = 0
)

// frameworks holds the CoreFoundation and IOKit entry points used here.
type frameworks struct {
	numberGetValue        func(number cfNumberRef, typ cfIndex, out unsafe.Pointer) bool
	release               func(cf cfTypeRef)
	runLoopGetCurrent     func() cfRunLoopRef
	runLoopRun            func()
	runLoopStop           func(rl cfRunLoopRef)
	stringCreateWithBytes func(alloc cfAllocatorRef, b []byte, n cfIndex, enc cfEncoding, external bool) cfStringRef
	defaultMode           uintptr

	deviceGetProperty   func(dev hidDeviceRef, key cfStringRef) cfTypeRef
	managerCreate       func(alloc cfAllocatorRef, opts ioOptionBits) hidManagerRef
	managerOpen         func(mgr hidManagerRef, opts ioOptionBits) ioReturn
	managerClose        func(mgr hidManagerRef, opts ioOptionBits) ioReturn
	managerSetMatching  func(mgr hidManagerRef, matching cfDictionaryRef)
	managerOnMatch      func(mgr hidManagerRef, callback uintptr, context unsafe.Pointer)
	managerScheduleLoop func(mgr hidManagerRef, rl cfRunLoopRef, mode cfStringRef)
}

var (
	fwOnce sync.Once
	fw     *frameworks
	fwErr  error

	// active is the watcher the IOKit callback reports to. One at a time.
	active   atomic.Pointer[watcher]
	callback uintptr
)

func load() (*frameworks, error) {
	fwOnce.Do(func() {
		f := &frameworks{}
		cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			fwErr = fmt.Errorf("loading CoreFoundation: %w", err)
			return
		}
		purego.RegisterLibFunc(&f.numberGetValue, cf, "CFNumberGetValue")
		purego.RegisterLibFunc(&f.release, cf, "CFRelease")
		purego.RegisterLibFunc(&f.runLoopGetCurrent, cf, "CFRunLoopGetCurrent")
		purego.RegisterLibFunc(&f.runLoopRun, cf, "CFRunLoopRun")
		purego.RegisterLibFunc(&f.runLoopStop, cf, "CFRunLoopStop")
		purego.RegisterLibFunc(&f.stringCreateWithBytes, cf, "CFStringCreateWithBytes")
		if f.defaultMode, err = purego.Dlsym(cf, "kCFRunLoopDefaultMode"); err != nil {
			fwErr = fmt.Errorf("resolving kCFRunLoopDefaultMode: %w", err)
			return
		}

		iokit, err := purego.Dlopen("/System/Library/Frameworks/IOKit.framework/IOKit", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			fwErr = fmt.Errorf("loading IOKit: %w", err)
			return
		}
		purego.RegisterLibFunc(&f.deviceGetProperty, iokit, "IOHIDDeviceGetProperty")
		purego.RegisterLibFunc(&f.managerCreate, iokit, "IOHIDManagerCreate")
		purego.RegisterLibFunc(&f.managerOpen, iokit, "IOHIDManagerOpen")
		purego.RegisterLibFunc(&f.managerClose, iokit, "IOHIDManagerClose")
		purego.RegisterLibFunc(&f.managerSetMatching, iokit, "IOHIDManagerSetDeviceMatching")
		purego.RegisterLibFunc(&f.managerOnMatch, iokit, "IOHIDManagerRegisterDeviceMatchingCallback")
		purego.RegisterLibFunc(&f.managerScheduleLoop, iokit, "IOHIDManagerScheduleWithRunLoop")

		callback = purego.NewCallback(onMatch)
		fw = f
	})
	return fw, fwErr
}

type watcher struct {
	fw       *frameworks
	ch       chan struct{}
	vendorID uint16
}

func onMatch(_ unsafe.Pointer, _ ioReturn, _ uintptr, dev hidDeviceRef) {
	w := active.Load()
	if w == nil {
		return
	}
	vid, ok := w.vendor(dev)
	if !ok || vid != w.vendorID {
		return
	}
	logger.WithComponent("usbwatch").Debug().Str("vendor", fmt.Sprintf("0x%04x", vid)).Msg("device arrived")
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *watcher) vendor(dev hidDeviceRef) (uint16, bool) {
	key := []byte("VendorID")
	s := w.fw.stringCreateWithBytes(cfAllocatorDefault, key, cfIndex(len(key)), cfEncodingUTF8, false)
	if s == 0 {
		return 0, false
	}
	defer w.fw.release(cfTypeRef(s))

	prop := w.fw.deviceGetProperty(dev, s)
	if prop == 0 {
		return 0, false
	}
	var vid uint16
	if !w.fw.numberGetValue(cfNumberRef(prop), cfNumberSInt16, unsafe.Pointer(&vid)) {
		return 0, false
	}
	return vid, true
}

// Watch signals each time a HID device from vendorID is attached. IOKit
// also reports devices already present when the watch starts. The channel
// is nil when the frameworks cannot be loaded.
func Watch(ctx context.Context, vendorID uint16) <-chan struct{} {
	log := logger.WithComponent("usbwatch")
	f, err := load()
	if err != nil {
		log.Warn().Err(err).Msg("USB arrival watch unavailable")
		return nil
	}

	w := &watcher{fw: f, ch: make(chan struct{}, 1), vendorID: vendorID}
	active.Store(w)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer active.CompareAndSwap(w, nil)

		mgr := f.managerCreate(cfAllocatorDefault, ioOptionsNone)
		if rv := f.managerOpen(mgr, ioOptionsNone); rv != ioSuccess {
			log.Warn().Str("code", fmt.Sprintf("0x%08x", uint32(rv))).Msg("opening HID manager failed")
			return
		}
		// Match every HID device; the callback filters by vendor.
		f.managerSetMatching(mgr, 0)

		rl := f.runLoopGetCurrent()
		f.managerScheduleLoop(mgr, rl, **(**cfStringRef)(unsafe.Pointer(&f.defaultMode)))
		f.managerOnMatch(mgr, callback, nil)

		go func() {
			<-ctx.Done()
			f.runLoopStop(rl)
		}()

		log.Debug().Msg("watching for USB arrivals")
		f.runLoopRun()

		f.managerClose(mgr, ioOptionsNone)
		f.release(cfTypeRef(mgr))
		log.Debug().Msg("USB watch stopped")
	}()

	return w.ch
}
