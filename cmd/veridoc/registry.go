package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the student registry",
	Long: `Manage the student registry database directly, without a server.

The registry holds the records that verification matches extracted
fields against. Records come from xlsx workbook imports.

Examples:
  veridoc registry import students.xlsx  # Import a workbook
  veridoc registry list                  # List all records
  veridoc registry count                 # Count records`,
}

var registryImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import records from an xlsx workbook",
	Long: `Import student records from an xlsx workbook.

The first row must be a header row. Recognized columns: Name, DOB,
Passing Year, Board, Gender, Identity Number. Unknown columns are
ignored and rows missing a name are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openRegistryStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := registry.Import(ctx, store, args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		total, err := store.Count(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d records (%d total)\n", n, total)
		return nil
	},
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRegistryStore()
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.Records(cmd.Context())
		if err != nil {
			return err
		}

		return api.Output(recs)
	},
}

var registryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count registry records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRegistryStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%d records\n", n)
		return nil
	},
}

func init() {
	registryCmd.AddCommand(registryImportCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryCountCmd)
	rootCmd.AddCommand(registryCmd)
}

// openRegistryStore opens the registry database at the configured path,
// falling back to the shared database file in the home directory.
func openRegistryStore() (*registry.Store, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}

	cm, err := getConfigManager(h)
	if err != nil {
		return nil, err
	}

	path := cm.Get().Registry.Path
	if path == "" {
		path = h.DatabasePath()
	}

	return registry.Open(path)
}
