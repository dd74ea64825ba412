package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParsePipeline parses YAML content into a Pipeline object
func ParsePipeline(data []byte) (*Pipeline, error) {
	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		switch err.(type) {
		case *DuplicateLabelError, *ConfigurationError:
			return nil, err
		}
		return nil, &ConfigurationError{Msg: "invalid pipeline document", Err: err}
	}
	if len(pipeline.Jobs) == 0 {
		return nil, &ConfigurationError{Msg: "pipeline defines no jobs"}
	}
	return &pipeline, nil
}

// LoadPipeline reads a pipeline file and returns a Pipeline object
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pipeline, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pipeline, nil
}
