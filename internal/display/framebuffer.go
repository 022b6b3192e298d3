package display

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// Linux framebuffer ioctls, from linux/fb.h.
const (
	fbioGetVScreenInfo = 0x4600
	fbioPutVScreenInfo = 0x4601
	fbioGetFScreenInfo = 0x4602
	fbioPanDisplay     = 0x4606
	fbioBlank          = 0x4611

	fbBlankUnblank   = 0
	fbBlankPowerdown = 4
)

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// VarScreenInfo mirrors fb_var_screeninfo.
type VarScreenInfo struct {
	XRes         uint32
	YRes         uint32
	XResVirtual  uint32
	YResVirtual  uint32
	XOffset      uint32
	YOffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          fbBitfield
	Green        fbBitfield
	Blue         fbBitfield
	Transp       fbBitfield
	NonStd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

// FixScreenInfo mirrors fb_fix_screeninfo.
type FixScreenInfo struct {
	ID         [16]byte
	SMemStart  uint32
	SMemLen    uint32
	Type       uint32
	TypeAux    uint32
	Visual     uint32
	XPanStep   uint16
	YPanStep   uint16
	YWrapStep  uint16
	LineLength uint32
	MMIOStart  uint32
	MMIOLen    uint32
	Accel      uint32
	Cap        uint16
	Reserved   [2]uint16
}

// Device is the framebuffer the display pipeline drives. The real
// implementation wraps /dev/fb*; MemDevice substitutes it in tests and dry
// runs.
type Device interface {
	VarScreenInfo() (VarScreenInfo, error)
	FixScreenInfo() (FixScreenInfo, error)

	// Map maps length bytes of framebuffer memory, shared with the kernel.
	Map(length int) ([]byte, error)
	Unmap(data []byte) error

	// Blank powers the panel down or back up.
	Blank(powerOff bool) error

	// PutVarScreenInfo programs the given screen configuration. Used for the
	// very first flip after start.
	PutVarScreenInfo(info *VarScreenInfo) error

	// PanDisplay flips to the page selected by info.YOffset and blocks until
	// the previous frame's vsync.
	PanDisplay(info *VarScreenInfo) error

	Close() error
}

// FramebufferDevice drives a real framebuffer device node.
type FramebufferDevice struct {
	file *os.File
}

// OpenFramebuffer opens the framebuffer device at path.
func OpenFramebuffer(path string) (*FramebufferDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}
	return &FramebufferDevice{file: file}, nil
}

func (d *FramebufferDevice) VarScreenInfo() (VarScreenInfo, error) {
	var info VarScreenInfo
	if err := ioctl(d.file.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		return info, fmt.Errorf("fetch display vscreeninfo: %w", err)
	}
	return info, nil
}

func (d *FramebufferDevice) FixScreenInfo() (FixScreenInfo, error) {
	var info FixScreenInfo
	if err := ioctl(d.file.Fd(), fbioGetFScreenInfo, unsafe.Pointer(&info)); err != nil {
		return info, fmt.Errorf("fetch display fscreeninfo: %w", err)
	}
	return info, nil
}

func (d *FramebufferDevice) Map(length int) ([]byte, error) {
	data, err := syscall.Mmap(
		int(d.file.Fd()), 0, length,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("map framebuffer to memory: %w", err)
	}
	return data, nil
}

func (d *FramebufferDevice) Unmap(data []byte) error {
	return syscall.Munmap(data)
}

func (d *FramebufferDevice) Blank(powerOff bool) error {
	arg := uintptr(fbBlankUnblank)
	if powerOff {
		arg = fbBlankPowerdown
	}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, d.file.Fd(), fbioBlank, arg)
	if errno != 0 {
		return fmt.Errorf("blank framebuffer: %w", errno)
	}
	return nil
}

func (d *FramebufferDevice) PutVarScreenInfo(info *VarScreenInfo) error {
	if err := ioctl(d.file.Fd(), fbioPutVScreenInfo, unsafe.Pointer(info)); err != nil {
		return fmt.Errorf("put display vscreeninfo: %w", err)
	}
	return nil
}

func (d *FramebufferDevice) PanDisplay(info *VarScreenInfo) error {
	if err := ioctl(d.file.Fd(), fbioPanDisplay, unsafe.Pointer(info)); err != nil {
		return fmt.Errorf("pan display: %w", err)
	}
	return nil
}

func (d *FramebufferDevice) Close() error {
	return d.file.Close()
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
