package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// fileCmd represents the file command
var fileCmd = &cobra.Command{
	Use:   "file <document>",
	Short: "Localize the images of one document",
	Long: `Download every image referenced from one Markdown document and rewrite
its links to the local copies.

The document path is taken relative to the vault root unless absolute.

Example:
  imgpull file notes/trip.md
  imgpull --vault ~/notes file inbox/today.md --naming unique`,
	Args: cobra.ExactArgs(1),
	RunE: runFileCmd,
}

func init() {
	rootCmd.AddCommand(fileCmd)
}

func runFileCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	_, err = runFile(cmd.Context(), cfg, vaultDir, args[0], cmd.OutOrStdout(), os.Stderr, isTerminal(os.Stdout))
	return err
}

// runFile rewrites a single document and prints the summary to out
func runFile(ctx context.Context, cfg *model.Config, root, arg string, out, logOut io.Writer, pretty bool) (model.AggregateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cfg, root, logOut)
	if err != nil {
		return model.AggregateResult{}, err
	}
	defer s.Close()

	rel, err := documentPath(s.vault, arg)
	if err != nil {
		return model.AggregateResult{}, err
	}

	agg := s.rewrite(ctx, []storage.Document{{Path: rel}})
	fmt.Fprint(out, renderSummary(agg, pretty))
	return agg, nil
}
