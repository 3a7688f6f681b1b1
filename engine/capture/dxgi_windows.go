//go:build windows

package capture

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"golang.org/x/sys/windows"
)

var (
	d3d11DLL              = windows.NewLazySystemDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware        = 1
	d3dFeatureLevel11_0          = 0xb000
	d3d11SDKVersion              = 7
	d3d11CreateDeviceBGRASupport = 0x20
	d3d11UsageStaging            = 3
	d3d11CPUAccessRead           = 0x20000
	d3d11MapRead                 = 1

	dxgiFormatRGBA16Float = 10
	dxgiFormatBGRA8Unorm  = 87

	dxgiErrInvalidCall = 0x887A0001
	dxgiErrWaitTimeout = 0x887A0027

	// COM vtable indices
	vtblQueryInterface          = 0
	vtblRelease                 = 2
	dxgiDeviceGetAdapter        = 7
	dxgiAdapterEnumOutputs      = 7
	dxgiOutputGetDesc           = 7
	dxgiOutput1DuplicateOutput  = 22
	dxgiOutput5DuplicateOutput1 = 26
	dxgiDuplGetDesc             = 7
	dxgiDuplAcquireNextFrame    = 8
	dxgiDuplReleaseFrame        = 14
	d3d11DeviceCreateTexture2D  = 5
	d3d11CtxMap                 = 14
	d3d11CtxUnmap               = 15
	d3d11CtxCopyResource        = 47
)

var (
	iidIDXGIDevice     = windows.GUID{Data1: 0x54ec77fa, Data2: 0x1377, Data3: 0x44e6, Data4: [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIOutput1    = windows.GUID{Data1: 0x00cddea8, Data2: 0x939b, Data3: 0x4b83, Data4: [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidIDXGIOutput5    = windows.GUID{Data1: 0x80a07424, Data2: 0xab52, Data3: 0x42eb, Data4: [8]byte{0x83, 0x3c, 0x0c, 0x42, 0xfd, 0x28, 0x2d, 0x98}}
	iidID3D11Texture2D = windows.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC.
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// dxgiModeDesc matches DXGI_MODE_DESC.
type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshNum       uint32
	RefreshDen       uint32
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// dxgiOutDuplDesc matches DXGI_OUTDUPL_DESC.
type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32
}

// dxgiOutputDesc matches DXGI_OUTPUT_DESC.
type dxgiOutputDesc struct {
	DeviceName        [32]uint16
	Left, Top         int32
	Right, Bottom     int32
	AttachedToDesktop int32
	Rotation          uint32
	Monitor           uintptr
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// hresult is a failed COM call.
type hresult uint32

func (h hresult) Error() string {
	return fmt.Sprintf("HRESULT 0x%08X", uint32(h))
}

func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes method idx of obj and turns a failed HRESULT into an hresult error.
func comCall(obj uintptr, idx int, args ...uintptr) error {
	hr, _, _ := syscall.SyscallN(comVtblFn(obj, idx), append([]uintptr{obj}, args...)...)
	if int32(hr) < 0 {
		return hresult(uint32(hr))
	}
	return nil
}

func comRelease(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(comVtblFn(obj, vtblRelease), obj)
	}
}

// DXGIGrabber captures one output of the primary adapter with DXGI desktop duplication. Frames
// are copied through a CPU readable staging texture.
type DXGIGrabber struct {
	mu sync.Mutex

	device      uintptr
	context     uintptr
	duplication uintptr
	staging     uintptr

	format gpu.Format
	bpp    uint32
	width  uint32
	height uint32
	bounds common.Rect
	pixels []byte
}

var _ Grabber = &DXGIGrabber{}

// NewDXGIGrabber duplicates the output display of the primary adapter. The duplication asks for
// RGBA16F and BGRA8 through IDXGIOutput5 and falls back to the BGRA8 only IDXGIOutput1 interface.
//
// Parameters:
//   - display: the output index
//
// Returns:
//   - *DXGIGrabber: the grabber
//   - error: an error if any of the COM objects could not be created
func NewDXGIGrabber(display int) (*DXGIGrabber, error) {
	g := &DXGIGrabber{}
	if err := g.init(display); err != nil {
		g.release()
		return nil, err
	}
	logf("dxgi duplication of display %d, %dx%d %s", display, g.width, g.height, g.format)
	return g, nil
}

func (g *DXGIGrabber) init(display int) error {
	featureLevel := uint32(d3dFeatureLevel11_0)
	hr, _, _ := procD3D11CreateDevice.Call(
		0,
		d3dDriverTypeHardware,
		0,
		d3d11CreateDeviceBGRASupport,
		uintptr(unsafe.Pointer(&featureLevel)),
		1,
		d3d11SDKVersion,
		uintptr(unsafe.Pointer(&g.device)),
		0,
		uintptr(unsafe.Pointer(&g.context)),
	)
	if int32(hr) < 0 {
		return fmt.Errorf("D3D11CreateDevice: %w", hresult(uint32(hr)))
	}

	var dxgiDevice, adapter, output uintptr
	if err := comCall(g.device, vtblQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIDevice)), uintptr(unsafe.Pointer(&dxgiDevice))); err != nil {
		return fmt.Errorf("query IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)
	if err := comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return fmt.Errorf("get adapter: %w", err)
	}
	defer comRelease(adapter)
	if err := comCall(adapter, dxgiAdapterEnumOutputs, uintptr(display), uintptr(unsafe.Pointer(&output))); err != nil {
		return fmt.Errorf("enum output %d: %w", display, err)
	}
	defer comRelease(output)

	var outDesc dxgiOutputDesc
	if err := comCall(output, dxgiOutputGetDesc, uintptr(unsafe.Pointer(&outDesc))); err != nil {
		return fmt.Errorf("get output desc: %w", err)
	}
	g.bounds = common.NewRect(outDesc.Left, outDesc.Top, outDesc.Right-outDesc.Left, outDesc.Bottom-outDesc.Top)

	if err := g.duplicate(output); err != nil {
		return err
	}

	var desc dxgiOutDuplDesc
	syscall.SyscallN(comVtblFn(g.duplication, dxgiDuplGetDesc), g.duplication, uintptr(unsafe.Pointer(&desc)))
	g.width, g.height = desc.ModeDesc.Width, desc.ModeDesc.Height
	if g.width == 0 || g.height == 0 {
		return fmt.Errorf("invalid duplication size %dx%d", g.width, g.height)
	}
	switch desc.ModeDesc.Format {
	case dxgiFormatBGRA8Unorm:
		g.format = gpu.FormatBGRA8Unorm
	default:
		g.format = gpu.FormatRGBA16Float
	}
	g.bpp = g.format.BytesPerPixel()
	g.pixels = make([]byte, g.width*g.height*g.bpp)

	stagingDesc := d3d11Texture2DDesc{
		Width:          g.width,
		Height:         g.height,
		MipLevels:      1,
		ArraySize:      1,
		Format:         desc.ModeDesc.Format,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	if err := comCall(g.device, d3d11DeviceCreateTexture2D, uintptr(unsafe.Pointer(&stagingDesc)), 0, uintptr(unsafe.Pointer(&g.staging))); err != nil {
		return fmt.Errorf("create staging texture: %w", err)
	}
	return nil
}

func (g *DXGIGrabber) duplicate(output uintptr) error {
	var output5 uintptr
	if err := comCall(output, vtblQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIOutput5)), uintptr(unsafe.Pointer(&output5))); err == nil {
		defer comRelease(output5)
		formats := [2]uint32{dxgiFormatRGBA16Float, dxgiFormatBGRA8Unorm}
		err := comCall(output5, dxgiOutput5DuplicateOutput1, g.device, 0, uintptr(len(formats)), uintptr(unsafe.Pointer(&formats[0])), uintptr(unsafe.Pointer(&g.duplication)))
		if err == nil {
			return nil
		}
		logf("DuplicateOutput1 failed (%v), falling back to DuplicateOutput", err)
	}

	var output1 uintptr
	if err := comCall(output, vtblQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIOutput1)), uintptr(unsafe.Pointer(&output1))); err != nil {
		return fmt.Errorf("query IDXGIOutput1: %w", err)
	}
	defer comRelease(output1)
	if err := comCall(output1, dxgiOutput1DuplicateOutput, g.device, uintptr(unsafe.Pointer(&g.duplication))); err != nil {
		return fmt.Errorf("duplicate output: %w", err)
	}
	return nil
}

// AcquireNextFrame waits for a desktop update and copies it into host memory.
func (g *DXGIGrabber) AcquireNextFrame(timeout time.Duration) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var info dxgiOutDuplFrameInfo
	var resource uintptr
	err := comCall(g.duplication, dxgiDuplAcquireNextFrame,
		uintptr(timeout.Milliseconds()),
		uintptr(unsafe.Pointer(&info)),
		uintptr(unsafe.Pointer(&resource)),
	)
	if err != nil {
		return nil, dxgiError("acquire next frame", err)
	}
	defer comRelease(resource)
	if info.AccumulatedFrames == 0 {
		return &Frame{}, nil
	}

	var texture uintptr
	if err := comCall(resource, vtblQueryInterface, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&texture))); err != nil {
		return nil, fmt.Errorf("query ID3D11Texture2D: %w", err)
	}
	syscall.SyscallN(comVtblFn(g.context, d3d11CtxCopyResource), g.context, g.staging, texture)
	comRelease(texture)

	var mapped d3d11MappedSubresource
	if err := comCall(g.context, d3d11CtxMap, g.staging, 0, d3d11MapRead, 0, uintptr(unsafe.Pointer(&mapped))); err != nil {
		return nil, fmt.Errorf("map staging texture: %w", err)
	}
	row := g.width * g.bpp
	for y := uint32(0); y < g.height; y++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData+uintptr(y*mapped.RowPitch))), row)
		copy(g.pixels[y*row:], src)
	}
	syscall.SyscallN(comVtblFn(g.context, d3d11CtxUnmap), g.context, g.staging, 0)

	return &Frame{
		Data: common.TextureStagingData{
			Pixels:      g.pixels,
			Width:       g.width,
			Height:      g.height,
			BytesPerRow: row,
		},
		AccumulatedFrames: info.AccumulatedFrames,
	}, nil
}

func (g *DXGIGrabber) ReleaseFrame() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := comCall(g.duplication, dxgiDuplReleaseFrame); err != nil {
		return dxgiError("release frame", err)
	}
	return nil
}

// dxgiError maps the duplication HRESULTs with a meaning for callers onto the package sentinels.
func dxgiError(op string, err error) error {
	var hr hresult
	if errors.As(err, &hr) {
		switch uint32(hr) {
		case dxgiErrWaitTimeout:
			return ErrWaitTimeout
		case dxgiErrInvalidCall:
			return ErrInvalidCall
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (g *DXGIGrabber) Format() gpu.Format {
	return g.format
}

func (g *DXGIGrabber) Bounds() common.Rect {
	return g.bounds
}

func (g *DXGIGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
	return nil
}

func (g *DXGIGrabber) release() {
	for _, obj := range []*uintptr{&g.staging, &g.duplication, &g.context, &g.device} {
		comRelease(*obj)
		*obj = 0
	}
}
