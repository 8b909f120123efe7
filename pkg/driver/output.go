package driver

import (
	"os"
	"path/filepath"

	"github.com/jakt-lang/testrunner/pkg/classify"
)

// ReadStageOutputs reads the stdout/stderr capture files the driver
// subprocess writes for the stage corresponding to exitCode, inside dir. A
// missing file is not an error: it means the stage never produced that
// stream, and Classify treats an empty string the same way.
func ReadStageOutputs(dir string, exitCode int) (stdout, stderr string, err error) {
	stage, ok := classify.StageForExitCode(exitCode)
	if !ok {
		return "", "", nil
	}
	outName, errName := stage.OutputFilenames()
	if outName != "" {
		stdout, err = readOptional(filepath.Join(dir, outName))
		if err != nil {
			return "", "", err
		}
	}
	if errName != "" {
		stderr, err = readOptional(filepath.Join(dir, errName))
		if err != nil {
			return "", "", err
		}
	}
	return stdout, stderr, nil
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
