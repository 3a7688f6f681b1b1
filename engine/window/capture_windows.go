//go:build windows

package window

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSetWindowDisplayAffinity = user32.NewProc("SetWindowDisplayAffinity")
)

const wdaExcludeFromCapture = 0x11

// excludeFromCapture hides the overlay from desktop duplication so it never analyzes itself.
func excludeFromCapture(win *glfw.Window) error {
	if err := procSetWindowDisplayAffinity.Find(); err != nil {
		return err
	}
	hwnd := uintptr(unsafe.Pointer(win.GetWin32Window()))
	if r, _, err := procSetWindowDisplayAffinity.Call(hwnd, wdaExcludeFromCapture); r == 0 {
		return err
	}
	return nil
}
