package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// vaultCmd represents the vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Localize the images of every document in the vault",
	Long: `Download every image referenced from the vault's Markdown documents and
rewrite their links to the local copies.

Documents are processed concurrently; a document that cannot be read or
written is reported and the rest of the batch continues. Hidden directories
and the download directory itself are skipped.

Example:
  imgpull vault
  imgpull --vault ~/notes vault --concurrency 10
  IMGPULL_NAMING_HASH=blake3 imgpull vault`,
	Args: cobra.NoArgs,
	RunE: runVaultCmd,
}

func init() {
	rootCmd.AddCommand(vaultCmd)

	vaultCmd.Flags().Int("concurrency", 5, "number of documents processed in parallel")
	_ = viper.BindPFlag("concurrency", vaultCmd.Flags().Lookup("concurrency"))
}

func runVaultCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	_, err = runVault(cmd.Context(), cfg, vaultDir, cmd.OutOrStdout(), os.Stderr, isTerminal(os.Stdout))
	return err
}

// runVault rewrites every document in the vault and prints the summary to out
func runVault(ctx context.Context, cfg *model.Config, root string, out, logOut io.Writer, pretty bool) (model.AggregateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cfg, root, logOut)
	if err != nil {
		return model.AggregateResult{}, err
	}
	defer s.Close()

	docs, err := s.vault.ListDocuments(ctx)
	if err != nil {
		return model.AggregateResult{}, fmt.Errorf("list documents: %w", err)
	}

	agg := s.rewrite(ctx, docs)
	fmt.Fprint(out, renderSummary(agg, pretty))
	return agg, nil
}
