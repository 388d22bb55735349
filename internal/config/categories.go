package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultCategories is used when no categories file exists
var DefaultCategories = []Category{
	{Name: "Saobraćaj"},
	{Name: "Čistoća"},
	{Name: "Infrastruktura"},
	{Name: "Bezbednost"},
	{Name: "Ostalo"},
}

type Category struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
}

type CategoriesConfig struct {
	Categories []Category `yaml:"categories"`
}

func LoadCategories(categoriesFile string) ([]Category, error) {
	var categoriesPath string
	if filepath.IsAbs(categoriesFile) {
		categoriesPath = categoriesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		categoriesPath = filepath.Join(wd, categoriesFile)
	}

	data, err := os.ReadFile(categoriesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", categoriesFile, err)
	}

	var config CategoriesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", categoriesFile, err)
	}

	if len(config.Categories) == 0 {
		return nil, fmt.Errorf("%s defines no categories", categoriesFile)
	}

	seen := make(map[string]bool, len(config.Categories))
	for i, category := range config.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return nil, fmt.Errorf("category at index %d missing name", i)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[strings.ToLower(name)] = true
		config.Categories[i].Name = name
	}

	return config.Categories, nil
}

// LoadCategoriesOrDefault falls back to DefaultCategories when the file is
// missing. Any other error is returned.
func LoadCategoriesOrDefault(categoriesFile string) ([]Category, error) {
	categories, err := LoadCategories(categoriesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultCategories, nil
		}
		return nil, err
	}
	return categories, nil
}

// CategoryNames returns the names in file order
func CategoryNames(categories []Category) []string {
	names := make([]string, len(categories))
	for i, category := range categories {
		names[i] = category.Name
	}
	return names
}
