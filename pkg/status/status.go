// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"errors"
	"fmt"
)

// Code classifies a compilation failure. Codes form a closed set: callers
// switch on the code of a returned error instead of matching message text.
type Code int32

const (
	// CodeOK is the zero code. It is never attached to a non-nil error.
	CodeOK Code = iota
	// CodeInvalidRequest marks malformed or inconsistent caller input.
	CodeInvalidRequest
	// CodePlatformUnavailable marks a compile client that could not be obtained.
	CodePlatformUnavailable
	// CodeOpLegalizationFailed marks one or more operations the legalizer
	// attempted and could not lower. This is the only code the dispatcher
	// recovers from locally, by falling back to the legacy compiler.
	CodeOpLegalizationFailed
	// CodeLegacyCompilationFailed marks a terminal failure of the legacy
	// graph compiler.
	CodeLegacyCompilationFailed
	// CodeGraphAnalysisUnsupported marks the benign degraded-environment
	// outcome: graph analysis cannot evaluate modules in this build.
	CodeGraphAnalysisUnsupported
	// CodeInternal marks failures that carry no more specific code.
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidRequest:
		return "INVALID_REQUEST"
	case CodePlatformUnavailable:
		return "PLATFORM_UNAVAILABLE"
	case CodeOpLegalizationFailed:
		return "OP_LEGALIZATION_FAILED"
	case CodeLegacyCompilationFailed:
		return "LEGACY_COMPILATION_FAILED"
	case CodeGraphAnalysisUnsupported:
		return "GRAPH_ANALYSIS_UNSUPPORTED"
	case CodeInternal:
		return "INTERNAL"
	default:
		return fmt.Sprintf("CODE(%d)", int32(c))
	}
}

// ErrGraphAnalysisUnsupported is the distinguished benign sentinel. Match it
// with errors.Is: any status carrying CodeGraphAnalysisUnsupported compares
// equal to it, so callers never need to compare message strings.
var ErrGraphAnalysisUnsupported = New(CodeGraphAnalysisUnsupported,
	"graph analysis cannot evaluate this module in the current build")

// Status is a coded error. It wraps an optional cause and keeps the code
// addressable through arbitrarily deep fmt.Errorf("%w") chains.
type Status struct {
	code   Code
	reason string
	cause  error
}

// New creates a Status with a fixed reason.
func New(code Code, reason string) *Status {
	return &Status{code: code, reason: reason}
}

// Newf creates a Status with a formatted reason.
func Newf(code Code, format string, args ...any) *Status {
	return &Status{code: code, reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an existing error. A nil err yields nil.
func Wrap(code Code, err error) *Status {
	if err == nil {
		return nil
	}
	return &Status{code: code, cause: err}
}

// WrapWithMessage attaches a code and a reason to an existing error.
func WrapWithMessage(code Code, err error, reason string) *Status {
	if err == nil {
		return nil
	}
	return &Status{code: code, reason: reason, cause: err}
}

func (s *Status) Error() string {
	switch {
	case s.reason != "" && s.cause != nil:
		return fmt.Sprintf("%s: %s: %v", s.code, s.reason, s.cause)
	case s.reason != "":
		return fmt.Sprintf("%s: %s", s.code, s.reason)
	case s.cause != nil:
		return fmt.Sprintf("%s: %v", s.code, s.cause)
	default:
		return s.code.String()
	}
}

// Code returns the classification code.
func (s *Status) Code() Code {
	return s.code
}

// Reason returns the reason text, without the cause chain.
func (s *Status) Reason() string {
	return s.reason
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (s *Status) Unwrap() error {
	return s.cause
}

// Is reports code equality against another Status, which makes
// errors.Is(err, ErrGraphAnalysisUnsupported) a tagged-variant match.
func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	if !ok {
		return false
	}
	return s.code == t.code
}

// CodeOf extracts the code carried by err. It returns CodeOK for nil and
// CodeInternal for errors with no Status in their chain.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var s *Status
	if errors.As(err, &s) {
		return s.code
	}
	return CodeInternal
}
