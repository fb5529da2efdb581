package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"reporag/internal/logging"
)

var collectionsJSON bool

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List ingested collections",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
	collectionsCmd.Flags().BoolVar(&collectionsJSON, "json", false, "output as JSON")
}

func runCollections(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetConfig(), GetRootDir(), false, logging.OrNop(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.Collections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	out := cmd.OutOrStdout()
	if collectionsJSON {
		output, _ := json.MarshalIndent(infos, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No collections found. Run 'reporag ingest' first.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDOCUMENTS\tDIMENSION\tUPDATED")
	for _, info := range infos {
		updated := "-"
		if !info.UpdatedAt.IsZero() {
			updated = info.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", info.Name, info.Documents, info.Dimension, updated)
	}
	return tw.Flush()
}
