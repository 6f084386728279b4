package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Stage names the step of LoadConfig that failed.
type Stage string

const (
	StageRead     Stage = "read"
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
)

// FileError reports a config.yaml that could not be used. For StageValidate
// the wrapped error is a ValidationErrors listing every bad key.
type FileError struct {
	Path  string
	Stage Stage
	// Line is the 1-based line yaml.v3 reported, or 0.
	Line int
	Err  error
}

func (e *FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config %s line %d: %s: %v", e.Path, e.Line, e.Stage, e.Err)
	}
	return fmt.Sprintf("config %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Hint suggests a fix for the keys evault reads.
func (e *FileError) Hint() string {
	switch e.Stage {
	case StageParse:
		return `Durations such as server.timeout and auth.pollInterval are strings like "10s"; nested keys are indented under server, web and auth.`
	case StageValidate:
		return "Fix the keys listed above, or remove them to fall back to the defaults (evault writes none)."
	case StageRead:
		return "Check the permissions of the evault config directory or pass --config-path."
	default:
		return ""
	}
}

// Detailed renders the error, one validation problem per line, followed by
// the hint.
func (e *FileError) Detailed() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration error in %s (%s)\n", e.Path, e.Stage)
	if verrs, ok := e.Err.(ValidationErrors); ok {
		for _, ve := range verrs {
			fmt.Fprintf(&b, "  - %s\n", ve.Error())
		}
	} else {
		fmt.Fprintf(&b, "  %v\n", e.Err)
	}
	if hint := e.Hint(); hint != "" {
		fmt.Fprintf(&b, "%s\n", hint)
	}
	return b.String()
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlLine extracts the first line number from a yaml.v3 error.
func yamlLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
