// Package driver builds the subprocess argument vector for a single test
// run and reads back the stage output files the driver subprocess writes
// into the test's scratch directory.
//
// The driver subprocess is an external binary: this package only knows its
// invocation contract, never its implementation.
package driver

// noIncludesSentinel is passed to the driver subprocess in place of an empty
// cpp_includes string, since the driver's argv parser treats an empty
// positional argument as "argument omitted" rather than "no includes."
const noIncludesSentinel = "None"

// defaultCppCompiler is substituted when Command.CppCompiler is empty, per
// the driver contract's "<path or clang++>" default.
const defaultCppCompiler = "clang++"

// Command is the fixed, per-run portion of a driver invocation: the
// interpreter and script that implement the driver, the toolchain paths it
// needs to find the Jakt compiler and its runtime library, and the target
// it builds for. These never change between tests in the same run.
type Command struct {
	// ShellInvocation is argv[0]: the interpreter that runs DriverScript
	// (e.g. the path to a python3 binary).
	ShellInvocation string
	// DriverScript is argv[1]: the path to the driver script itself
	// (e.g. "jakttest/run_one.py").
	DriverScript string
	// JaktBinary is passed as --jakt-binary: the path to the Jakt
	// compiler the driver should invoke to transpile each test.
	JaktBinary string
	// JaktLibDir is passed as --jakt-lib-dir: the directory containing
	// the Jakt runtime library the generated C++ links against.
	JaktLibDir string
	// TargetTriple is passed as --target-triple: the target the
	// transpiled C++ is compiled for.
	TargetTriple string
	// CppCompiler is passed as --cpp-compiler. Empty selects "clang++".
	CppCompiler string
}

// Buffer is a reusable argv scratch space. Fill overwrites only the last
// three positions on each call: the fixed prefix (shell invocation, driver
// script, and every flagged toolchain argument) is written once by New and
// never reallocated across the lifetime of a run.
type Buffer struct {
	argv []string
}

// New constructs a Buffer with its fixed prefix populated from cmd,
// matching the driver subprocess contract's argv shape:
//
//	[ShellInvocation, DriverScript,
//	 "--jakt-binary", JaktBinary,
//	 "--jakt-lib-dir", JaktLibDir,
//	 "--target-triple", TargetTriple,
//	 "--cpp-compiler", CppCompiler,
//	 "--cpp-include", <cpp_includes>, <scratch_dir>, <source_file>]
//
// The trailing three slots are placeholders until the first call to Fill.
func New(cmd Command) *Buffer {
	cppCompiler := cmd.CppCompiler
	if cppCompiler == "" {
		cppCompiler = defaultCppCompiler
	}
	return &Buffer{
		argv: []string{
			cmd.ShellInvocation,
			cmd.DriverScript,
			"--jakt-binary", cmd.JaktBinary,
			"--jakt-lib-dir", cmd.JaktLibDir,
			"--target-triple", cmd.TargetTriple,
			"--cpp-compiler", cppCompiler,
			"--cpp-include", "",
			"",
			"",
		},
	}
}

// Fill overwrites the trailing three argv positions with this test's
// cpp_includes (substituting the sentinel when empty), scratch directory,
// and source file name, and returns the full argv slice. The returned
// slice aliases the Buffer's internal storage: callers must finish using
// it (e.g. pass it to Spawn) before calling Fill again.
func (b *Buffer) Fill(cppIncludes, directory, sourceFile string) []string {
	includes := cppIncludes
	if includes == "" {
		includes = noIncludesSentinel
	}
	n := len(b.argv)
	b.argv[n-3] = includes
	b.argv[n-2] = directory
	b.argv[n-1] = sourceFile
	return b.argv
}
