package registry

import (
	"context"
	"fmt"
	"os"

	"newsdesk/types"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout:
//
//	clients:
//	  - id: acme
//	    schedule: "0 7 * * *"
//	    topic_query: tesla
//	    nlp: true
//	    delivery_target: sqs
type fileDocument struct {
	Clients []types.ClientConfig `yaml:"clients"`
}

// FileRegistry reads clients from a YAML file on every call, so edits are
// picked up by the next schedule rebuild.
type FileRegistry struct {
	path string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

func (f *FileRegistry) List(ctx context.Context) ([]types.ClientConfig, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client registry %s: %w", f.path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse client registry %s: %w", f.path, err)
	}
	return doc.Clients, nil
}

func (f *FileRegistry) Get(ctx context.Context, id string) (types.ClientConfig, error) {
	return find(ctx, f, id)
}
