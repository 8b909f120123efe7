// Package directive extracts test expectations from a Jakt source file's
// leading comment block. It is the concrete implementation of the
// specification's external "directive parser" collaborator: the scheduler
// only depends on the Parse function's return shape, not on comment syntax.
//
// A source file declares its expectation with a comment block of the form:
//
//	// Expect:
//	// - output: "hi\n"
//
// or
//
//	// Expect:
//	// - error: "undefined name foo"
//
// An "error" directive defaults to a runtime-error expectation; prefixing
// the message with "compile:" marks it as a compile-error expectation
// instead:
//
//	// Expect:
//	// - error: compile: "undefined name foo"
//
// A bare skip marker excludes the file from the run entirely:
//
//	// Expect: skip
//
// Additional C++ headers the generated code should be compiled against are
// declared on their own line:
//
//	// Expect-CppIncludes: "extra_header.h"
package directive

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jakt-lang/testrunner/pkg/classify"
)

// ErrSkip is returned by Parse when the file carries a skip marker. Callers
// should exclude the file from scheduling but may still want to count it
// separately (the run command reports it as skipped).
var ErrSkip = fmt.Errorf("directive: file marked skip")

// Parsed holds everything the scheduler needs to build a Test record, minus
// the file name and directory_index which are assigned by the caller.
type Parsed struct {
	Expected    classify.ExpectedResult
	CppIncludes string
}

const (
	commentMarker     = "//"
	expectMarker      = "Expect:"
	expectSkip        = "Expect: skip"
	outputLinePrefix  = "- output:"
	errorLinePrefix   = "- error:"
	includesDirective = "Expect-CppIncludes:"
	compileTag        = "compile:"
)

// Parse scans source for an Expect directive block and returns the
// resulting expectation. If the file has no Expect block at all, it
// defaults to expecting a clean run with empty output. A file with no
// directive at all is vanishingly rare in practice but treating it as
// "expect success, no output" rather than erroring keeps Parse total over
// any input.
func Parse(source []byte) (Parsed, error) {
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		result      Parsed
		sawExpect   bool
		cppIncludes string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, commentMarker) {
			continue
		}
		// Directives live in ordinary line comments; everything after the
		// comment marker is the directive body.
		body := strings.TrimSpace(strings.TrimPrefix(line, commentMarker))

		if body == expectSkip {
			return Parsed{}, ErrSkip
		}

		if strings.HasPrefix(body, includesDirective) {
			raw := strings.TrimSpace(strings.TrimPrefix(body, includesDirective))
			unquoted, err := unquote(raw)
			if err != nil {
				return Parsed{}, fmt.Errorf("directive: invalid cpp includes line %q: %w", line, err)
			}
			cppIncludes = unquoted
			continue
		}

		if body == expectMarker {
			sawExpect = true
			continue
		}

		if !sawExpect {
			continue
		}

		if strings.HasPrefix(body, outputLinePrefix) {
			raw := strings.TrimSpace(strings.TrimPrefix(body, outputLinePrefix))
			unquoted, err := unquote(raw)
			if err != nil {
				return Parsed{}, fmt.Errorf("directive: invalid output line %q: %w", line, err)
			}
			result.Expected = classify.ExpectedResult{Kind: classify.Okay, Output: unquoted}
			sawExpect = false
			continue
		}

		if strings.HasPrefix(body, errorLinePrefix) {
			raw := strings.TrimSpace(strings.TrimPrefix(body, errorLinePrefix))
			kind := classify.RuntimeError
			if strings.HasPrefix(raw, compileTag) {
				kind = classify.CompileError
				raw = strings.TrimSpace(strings.TrimPrefix(raw, compileTag))
			}
			unquoted, err := unquote(raw)
			if err != nil {
				return Parsed{}, fmt.Errorf("directive: invalid error line %q: %w", line, err)
			}
			result.Expected = classify.ExpectedResult{Kind: kind, Output: unquoted}
			sawExpect = false
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return Parsed{}, fmt.Errorf("directive: scanning source: %w", err)
	}

	result.CppIncludes = cppIncludes
	return result, nil
}

// unquote parses a Go-style double-quoted directive value, which allows
// directives to embed escaped newlines (\n) and quotes the same way the
// classifier's normalization expects them.
func unquote(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	return strconv.Unquote(raw)
}
