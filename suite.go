package olapbench

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite describes everything the pipeline needs to know about one benchmark
// suite: where its generator toolkit lives, how to build it, how to invoke it
// and what the raw output looks like. Adding a suite is a matter of adding a
// value of this type, not new control flow.
type Suite struct {
	Name          string `yaml:"name"`
	ArchiveURL    string `yaml:"archive_url"`
	ArchiveSHA256 string `yaml:"archive_sha256"`
	// SourceSubdir is the directory inside the extracted archive that holds
	// the generator sources and, after a build, the executable.
	SourceSubdir    string   `yaml:"source_subdir"`
	BuildCommand    []string `yaml:"build_command"`
	BuildEnv        []string `yaml:"build_env"`
	Executable      string   `yaml:"executable"`
	GenerateCommand []string `yaml:"generate_command"`
	Delimiter       string   `yaml:"delimiter"`
	FileExtension   string   `yaml:"file_extension"`
	Tables          []string `yaml:"tables"`
}

var SuiteTpch = Suite{
	Name:          "tpch",
	ArchiveURL:    "https://github.com/gregrahn/tpch-kit/archive/0469309147b42abac8857fa61b4cf69a6d3128a8.zip",
	ArchiveSHA256: "261b41d5e0f6b0d0e37e9172c0f4a6d29a7452c7a72ab14fd8dc3e29051bba15",
	SourceSubdir:  "dbgen",
	BuildCommand:  []string{"make", "MACHINE=LINUX", "DATABASE=POSTGRESQL", "WORKLOAD=TPCH", "CFLAGS=-O2 -w -DDBNAME=\\\"dss\\\" -DLINUX -DPOSTGRESQL -DTPCH -DRNG_TEST -D_FILE_OFFSET_BITS=64"},
	Executable:    "dbgen",
	// -f forces overwrite of raw tables left by a previous run.
	GenerateCommand: []string{"./dbgen", "-vf", "-s", "{sf}"},
	Delimiter:       "|",
	FileExtension:   "tbl",
	Tables: []string{
		"customer", "lineitem", "nation", "orders",
		"part", "partsupp", "region", "supplier",
	},
}

var SuiteTpcds = Suite{
	Name:          "tpcds",
	ArchiveURL:    "https://github.com/gregrahn/tpcds-kit/archive/b5ae49db0c8d425de7b17b04ef48282798145277.zip",
	ArchiveSHA256: "7bd5a6ed27bcd1a1e883f87ecb550bd1a04b4741cf92a1231ba0b3a9ef261ba1",
	SourceSubdir:  "tools",
	BuildCommand:  []string{"make", "OS=LINUX", "CFLAGS=-O2 -w -DLINUX"},
	Executable:    "dsdgen",
	GenerateCommand: []string{
		"./dsdgen", "-FORCE", "Y", "-VERBOSE", "Y", "-SCALE", "{sf}",
	},
	Delimiter:     "|",
	FileExtension: "dat",
	Tables: []string{
		"call_center", "catalog_page", "catalog_returns", "catalog_sales",
		"customer", "customer_address", "customer_demographics", "date_dim",
		"household_demographics", "income_band", "inventory", "item",
		"promotion", "reason", "ship_mode", "store", "store_returns",
		"store_sales", "time_dim", "warehouse", "web_page", "web_returns",
		"web_sales", "web_site",
	},
}

// LoadSuite reads a suite definition from a YAML file.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, err
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return Suite{}, fmt.Errorf("failed to parse suite file %v: %w", path, err)
	}
	if err := suite.Validate(); err != nil {
		return Suite{}, fmt.Errorf("invalid suite file %v: %w", path, err)
	}
	return suite, nil
}

func (s Suite) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("suite name is empty")
	case s.ArchiveURL == "":
		return fmt.Errorf("suite %v has no archive url", s.Name)
	case s.ArchiveSHA256 == "":
		return fmt.Errorf("suite %v has no archive checksum", s.Name)
	case len(s.BuildCommand) == 0:
		return fmt.Errorf("suite %v has no build command", s.Name)
	case s.Executable == "":
		return fmt.Errorf("suite %v has no executable", s.Name)
	case len(s.GenerateCommand) == 0:
		return fmt.Errorf("suite %v has no generate command", s.Name)
	case len(s.Delimiter) != 1:
		return fmt.Errorf("suite %v delimiter must be a single character, got %q", s.Name, s.Delimiter)
	case s.FileExtension == "":
		return fmt.Errorf("suite %v has no file extension", s.Name)
	case len(s.Tables) == 0:
		return fmt.Errorf("suite %v has no tables", s.Name)
	}
	return nil
}

// GenerateArgs expands the {sf} placeholder in the generate command.
func (s Suite) GenerateArgs(scaleFactor string) []string {
	args := make([]string, 0, len(s.GenerateCommand))
	for _, arg := range s.GenerateCommand {
		args = append(args, strings.ReplaceAll(arg, "{sf}", scaleFactor))
	}
	return args
}

// TableFile returns the raw/normalized file name for one relation.
func (s Suite) TableFile(table string) string {
	return table + "." + s.FileExtension
}

// ParseScaleFactor validates a scale-factor argument and returns its
// canonical decimal form, so that "1", "1.0" and "1.00" key the same
// dataset directory. An empty argument defaults to 1.
func ParseScaleFactor(arg string) (string, error) {
	if arg == "" {
		return "1", nil
	}
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return "", fmt.Errorf("invalid scale factor %q: %w", arg, err)
	}
	if value <= 0 {
		return "", fmt.Errorf("scale factor must be positive, got %v", arg)
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}
