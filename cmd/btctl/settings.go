package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write gateway settings",
	}
	cmd.AddCommand(settingsImportCmd())
	cmd.AddCommand(settingsGetCmd())
	return cmd
}

func settingsImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Load settings from a YAML file",
		Long: `Load settings from a YAML file into the settings store.

Nested keys become dotted paths:

  test_mode: true
  gateways_braintree:
    test_merchant_id: abc123
    default_test_plans:
      month: monthly-gift

stores test_mode, gateways_braintree.test_merchant_id and
gateways_braintree.default_test_plans.month.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			values, err := parseSettings(data)
			if err != nil {
				return err
			}

			paths := make([]string, 0, len(values))
			for path := range values {
				paths = append(paths, path)
			}
			sort.Strings(paths)

			if dryRun {
				for _, path := range paths {
					fmt.Println(path)
				}
				fmt.Println("Dry run - no changes made")
				return nil
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.settings.SetAll(cmd.Context(), values); err != nil {
				return err
			}
			a.resolver.Invalidate(domain.EnvironmentTest)
			a.resolver.Invalidate(domain.EnvironmentLive)

			fmt.Printf("Imported %d settings\n", len(paths))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the paths that would be written without making changes")
	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			value, ok, err := a.settings.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}
}

// parseSettings decodes a YAML document into dotted setting paths.
func parseSettings(data []byte) (map[string]string, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid settings file: %w", err)
	}
	out := make(map[string]string)
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]interface{}:
			flatten(path, v, out)
		case nil:
			out[path] = ""
		case bool:
			out[path] = strconv.FormatBool(v)
		default:
			out[path] = fmt.Sprint(v)
		}
	}
}
