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

package mm

import "encoding/binary"

// packArgv lays out argc 32-bit little-endian pointers followed by the
// null-terminated argument strings themselves, returning the full page
// image and the size actually used. ptrBase is the virtual address the
// pointer table's page will be mapped at.
func packArgv(args []string, ptrBase uint32, pageSize int32) (page []byte, used int, ok bool) {
	ptrTableSize := len(args) * 4
	stringsSize := 0
	for _, a := range args {
		stringsSize += len(a) + 1
	}
	total := ptrTableSize + stringsSize
	if total > int(pageSize) {
		return nil, 0, false
	}

	page = make([]byte, pageSize)
	stringOff := ptrTableSize
	for i, a := range args {
		ptr := ptrBase + uint32(stringOff)
		binary.LittleEndian.PutUint32(page[i*4:], ptr)
		copy(page[stringOff:], a)
		page[stringOff+len(a)] = 0
		stringOff += len(a) + 1
	}
	return page, total, true
}
