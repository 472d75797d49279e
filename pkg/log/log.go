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

// Package log is the kernel's leveled logger. It exists so that call
// sites read "log.Warningf(...)" the way the rest of the tree expects,
// rather than reaching for the standard library's unleveled Logger
// directly at every call site.
package log

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
)

// Level selects which severities are emitted.
type Level int32

const (
	Warning Level = iota
	Info
	Debug
)

var level atomic.Int32

// SetLevel changes the minimum emitted severity. The zero value (Warning)
// is the default.
func SetLevel(l Level) { level.Store(int32(l)) }

func enabled(l Level) bool { return Level(level.Load()) >= l }

// Warningf logs at Warning severity. Warnings are always emitted.
func Warningf(format string, v ...any) {
	log.Output(2, "WARNING: "+fmt.Sprintf(format, v...))
}

// Infof logs at Info severity.
func Infof(format string, v ...any) {
	if enabled(Info) {
		log.Output(2, "INFO: "+fmt.Sprintf(format, v...))
	}
}

// Debugf logs at Debug severity.
func Debugf(format string, v ...any) {
	if enabled(Debug) {
		log.Output(2, "DEBUG: "+fmt.Sprintf(format, v...))
	}
}

// DebugfAtDepth logs at Debug severity, attributing the call to a frame
// `depth` levels above the caller. Used by helpers that want the log
// line to point at their own caller rather than themselves.
func DebugfAtDepth(depth int, format string, v ...any) {
	if !enabled(Debug) {
		return
	}
	_, file, line, ok := runtime.Caller(1 + depth)
	prefix := "DEBUG: "
	if ok {
		prefix = fmt.Sprintf("DEBUG: %s:%d: ", file, line)
	}
	log.Output(2, prefix+fmt.Sprintf(format, v...))
}
