// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags and the
// standard script modules.
// Usage: go run ./cmd/configdoc > docs/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/kestrel/internal/modules"
	"github.com/aplane-algo/kestrel/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
}

func main() {
	fmt.Println("# Configuration Reference")
	fmt.Println()
	fmt.Println("Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## kestrel Configuration")
	fmt.Println()
	fmt.Println("File: `config.yaml` in the kestrel data directory (`-d` or `KESTREL_DATA`)")
	fmt.Println()
	printStructTable(reflect.TypeOf(util.Config{}))
	fmt.Println()

	// Environment variables
	fmt.Println("## Environment Variables")
	fmt.Println()
	printEnvVars()
	fmt.Println()

	fmt.Println("## Script Modules")
	fmt.Println()
	if err := printModules(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printStructTable(t reflect.Type) {
	printStructTableWithPrefix(t, "")
}

func printStructTableWithPrefix(t reflect.Type, prefix string) {
	if prefix == "" {
		fmt.Println("| Field | Type | Default | Description |")
		fmt.Println("|-------|------|---------|-------------|")
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Get yaml tag first, fall back to json tag
		tag := field.Tag.Get("yaml")
		if tag == "" {
			tag = field.Tag.Get("json")
		}
		if tag == "" || tag == "-" {
			continue
		}
		// Handle tag options like "omitempty"
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		// Check if this is a nested struct (pointer to struct)
		if field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct {
			// Get description for the nested struct itself
			desc := field.Tag.Get("description")
			if desc == "" {
				desc = "(nested config block)"
			}
			fmt.Printf("| `%s` | object | (none) | %s |\n", fieldName, desc)
			// Recursively print nested struct fields
			printStructTableWithPrefix(field.Type.Elem(), fieldName)
			continue
		}

		// Get description
		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		// Get default
		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		// Get type name
		typeName := formatType(field.Type)

		fmt.Printf("| `%s` | %s | `%s` | %s |\n", fieldName, typeName, def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "uint"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func printEnvVars() {
	envVars := []EnvVar{
		{"KESTREL_DATA", "Data directory (config, assets, save data) when `-d` is not given"},
		{"KESTREL_DEBUG", "Set to any value to enable debug logging"},
		{"TERM", "`dumb` or unset disables colour output"},
	}

	fmt.Println("| Variable | Description |")
	fmt.Println("|----------|-------------|")

	for _, env := range envVars {
		fmt.Printf("| `%s` | %s |\n", env.Name, env.Description)
	}

	fmt.Println()
	fmt.Println("### Data Directory Resolution")
	fmt.Println()
	fmt.Println("1. `-d <path>` flag")
	fmt.Println("2. `KESTREL_DATA` environment variable")
	fmt.Println("3. `~/.kestrel`")
	fmt.Println()
	fmt.Println("Relative `assets`, `save_db` and `dump_dir` paths resolve against the data directory.")
}

// printModules lists every standard namespace with its functions.
func printModules() error {
	reg, err := modules.Surface()
	if err != nil {
		return err
	}
	for _, ns := range reg.Namespaces() {
		fmt.Printf("### `%s`\n\n", ns.Name)
		if ns.Doc != "" {
			fmt.Printf("%s\n\n", ns.Doc)
		}
		fmt.Println("| Function | Description |")
		fmt.Println("|----------|-------------|")
		for _, fn := range ns.Funcs() {
			fmt.Printf("| `%s` | %s |\n", fn.Signature(), fn.Doc)
		}
		for _, t := range ns.Types() {
			for _, m := range t.Methods() {
				fmt.Printf("| `%s.%s` | %s |\n", t.Name, m.Signature(), m.Doc)
			}
		}
		fmt.Println()
	}
	return nil
}

func init() {
	// Ensure we exit cleanly
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > docs/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags and the script modules.")
		os.Exit(0)
	}
}
