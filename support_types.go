package main

import (
	"encoding"
	"fmt"
)

// OutputFormat describes varieties of flow graph rendering.
type OutputFormat int

const (
	OutputFormatInvalid OutputFormat = iota

	// OutputFormatText lists blocks with their edges and instructions.
	OutputFormatText

	// OutputFormatDot renders the graph for Graphviz.
	OutputFormatDot
)

var outputFormatValueMap = map[OutputFormat]string{
	OutputFormatText: "text",
	OutputFormatDot:  "dot",
}

func (f OutputFormat) String() string {
	v, ok := outputFormatValueMap[f]
	if !ok {
		return fmt.Sprintf("invalid(%d)", f)
	}

	return v
}

var _ encoding.TextUnmarshaler = (*OutputFormat)(nil)

// UnmarshalText for setting values with flags.
func (f *OutputFormat) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range outputFormatValueMap {
		if v == text {
			*f = k
			return nil
		}
	}

	return fmt.Errorf("unknown output format %q", text)
}
