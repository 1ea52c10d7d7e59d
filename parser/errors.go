// Copyright 2025 Poiesic Systems
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


package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat indicates the file extension has no parser.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParse indicates the file content could not be decoded.
	ErrParse = errors.New("failed to parse file")
)

// Error reports a decode failure for a specific format.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrParse.
func (e *Error) Is(target error) bool {
	return target == ErrParse
}
