package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/pkg/types"
)

func (a *app) newSearchCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search items by name, description or location",
		Long: `Search items. The mode defaults to the searchMode setting; LLM mode falls
back to normal search when no classifier is available.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if mode == "" {
				s, err := st.Settings().Get(ctx)
				if err != nil {
					return err
				}
				mode = s.SearchMode
			}
			if mode != types.SearchNormal && mode != types.SearchLLM {
				return types.Invalid("mode", types.ErrInvalidSetting)
			}

			res, err := st.Search().SearchMode(ctx, mode, args[0])
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, res)
			}
			if res.FallbackReason != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: using normal search:", res.FallbackReason)
			}
			if res.Explanation != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Explanation)
			}
			names, err := categoryNames(ctx, st)
			if err != nil {
				return err
			}
			return printItems(cmd, res.Items, names)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "normal or llm (default: the searchMode setting)")
	return cmd
}
