package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed options.yaml
var defaultOptions []byte

// Options holds the choice lists offered by the entry forms.
type Options struct {
	ContractStatuses  []string `yaml:"contract_statuses" json:"contract_statuses"`
	TransactionTypes  []string `yaml:"transaction_types" json:"transaction_types"`
	ProductCategories []string `yaml:"product_categories" json:"product_categories"`
	STBOptions        []string `yaml:"stb_options" json:"stb_options"`
	SalesPeople       []string `yaml:"sales_people" json:"sales_people"`
	HistoryCategories []string `yaml:"history_categories" json:"history_categories"`
	Prefectures       []string `yaml:"prefectures" json:"prefectures"`
}

// DefaultOptions returns the built-in option lists.
func DefaultOptions() *Options {
	var opts Options
	if err := yaml.Unmarshal(defaultOptions, &opts); err != nil {
		panic(fmt.Sprintf("embedded options.yaml: %v", err))
	}
	return &opts
}

// LoadOptionsFromPath reads an options file. Lists missing from the file keep
// their built-in values.
func LoadOptionsFromPath(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	var override Options
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse options file: %w", err)
	}

	opts := DefaultOptions()
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&opts.ContractStatuses, override.ContractStatuses)
	merge(&opts.TransactionTypes, override.TransactionTypes)
	merge(&opts.ProductCategories, override.ProductCategories)
	merge(&opts.STBOptions, override.STBOptions)
	merge(&opts.SalesPeople, override.SalesPeople)
	merge(&opts.HistoryCategories, override.HistoryCategories)
	merge(&opts.Prefectures, override.Prefectures)
	return opts, nil
}

// LoadOptions uses path when set and the built-in lists otherwise.
func LoadOptions(path string) (*Options, error) {
	if path == "" {
		return DefaultOptions(), nil
	}
	return LoadOptionsFromPath(path)
}
