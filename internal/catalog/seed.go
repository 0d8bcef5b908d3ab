// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a catalog seed:
//
//	content:
//	  - id: big-buck-bunny
//	    title: Big Buck Bunny
//	    renditions:
//	      - {label: 720p, sourceUrl: https://cdn.example/bbb/720.mp4, height: 720}
type seedFile struct {
	Content []Content `yaml:"content"`
}

// LoadSeed imports every item of the YAML seed at path into repo and
// returns how many were written. Unknown keys are rejected.
func LoadSeed(ctx context.Context, repo Repository, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("catalog seed: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var seed seedFile
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("catalog seed %s: %w", path, err)
	}

	for i, c := range seed.Content {
		if _, err := repo.Put(ctx, c); err != nil {
			return i, fmt.Errorf("catalog seed %s: item %d (%s): %w", path, i, c.ID, err)
		}
	}
	return len(seed.Content), nil
}
