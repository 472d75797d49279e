// Copyright 2024 The Nachos-Go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hostconsole is the one real (non-fake) platform.Console this
// repository ships: it wires a user process's stdin/stdout to the
// host terminal, putting it in raw mode so input reaches the simulated
// console byte-for-byte instead of line-buffered. It talks to the host
// kernel through golang.org/x/sys/unix termios ioctls.
package hostconsole

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/suica-choo/nachos/pkg/sentry/platform"
)

// Console wires stdin/stdout to the host terminal. If stdin is not a
// TTY (e.g. piped input in a test harness or CI), raw mode is skipped
// and I/O is forwarded unmodified.
type Console struct {
	stdin   *file
	stdout  *file
	restore *unix.Termios
	fd      int
}

// Open puts the host terminal into raw mode (if it is one) and returns a
// Console wired to the process's real stdin/stdout. Callers must call
// Close to restore the terminal's prior mode.
func Open() (*Console, error) {
	fd := int(os.Stdin.Fd())
	c := &Console{
		stdin:  &file{f: os.Stdin},
		stdout: &file{f: os.Stdout},
		fd:     fd,
	}

	prior, err := unix.IoctlGetTermios(fd, termiosGetAttr)
	if err != nil {
		// Not a TTY (or unsupported): fall back to unmodified I/O,
		// which is the right behavior for piped/test invocations.
		return c, nil
	}
	c.restore = prior

	raw := *prior
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, termiosSetAttr, &raw); err != nil {
		c.restore = nil
	}
	return c, nil
}

// Close restores the terminal's prior mode, if it was changed.
func (c *Console) Close() error {
	if c.restore == nil {
		return nil
	}
	return unix.IoctlSetTermios(c.fd, termiosSetAttr, c.restore)
}

func (c *Console) StdinFile() platform.OpenFile  { return c.stdin }
func (c *Console) StdoutFile() platform.OpenFile { return c.stdout }

// file adapts an *os.File to platform.OpenFile. Console endpoints have
// no position: ReadAt/WriteAt just forward to the unpositioned calls.
type file struct {
	f *os.File
}

func (f *file) Read(p []byte) (int, error)             { return f.f.Read(p) }
func (f *file) Write(p []byte) (int, error)            { return f.f.Write(p) }
func (f *file) ReadAt(p []byte, _ int64) (int, error)  { return f.f.Read(p) }
func (f *file) WriteAt(p []byte, _ int64) (int, error) { return f.f.Write(p) }
func (f *file) Close() error                           { return nil }
