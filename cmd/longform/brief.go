package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/longform/internal/models"
)

// loadBrief reads a content brief from a .yaml/.yml, .toml or .json file
func loadBrief(path string) (*models.ContentBrief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brief %s: %w", path, err)
	}

	var brief models.ContentBrief
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &brief)
	case ".toml":
		err = toml.Unmarshal(data, &brief)
	case ".json":
		err = json.Unmarshal(data, &brief)
	default:
		return nil, fmt.Errorf("unsupported brief format %q (use .yaml, .toml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse brief %s: %w", path, err)
	}

	return &brief, nil
}
