//go:build linux

package gpsdxo

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// termiosSpeed maps every entry of SupportedBauds to its termios constant.
var termiosSpeed = map[int]uint32{
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

func openSerial(path string, baud int) (io.ReadCloser, error) {
	spd, ok := termiosSpeed[baud]
	if !ok {
		return nil, fmt.Errorf("serial %s: unsupported baud %d", path, baud)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("serial %s: open: %w", path, err)
	}
	if err := configureRaw(fd, spd); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("serial %s: %w", path, err)
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("serial %s: invalid descriptor %d", path, fd)
	}
	return f, nil
}

// configureRaw puts fd into raw 8N1 at spd. Reads block until at least one
// byte arrives; lines are framed in user space.
func configureRaw(fd int, spd uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | spd
	t.Ispeed, t.Ospeed = spd, spd
	t.Cc[unix.VMIN], t.Cc[unix.VTIME] = 1, 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}
