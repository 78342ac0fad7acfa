package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// settingKeys lists the names accepted by settings set, in display order.
var settingKeys = []string{
	"theme", "defaultView", "itemsPerPage", "searchMode",
	"llmProvider", "llmApiKey", "notifications", "notificationTiming",
}

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change preferences",
	}
	cmd.AddCommand(a.newSettingsGetCmd())
	cmd.AddCommand(a.newSettingsSetCmd())
	cmd.AddCommand(a.newSettingsResetCmd())
	return cmd
}

func (a *app) newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			s, err := st.Settings().Get(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSettings(cmd, s.Redacted())
		},
	}
}

func (a *app) newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change one or more settings",
		Long: `Change settings given as key=value pairs. Keys not named keep their value.

Valid keys: ` + strings.Join(settingKeys, ", "),
		Example: `  othings settings set theme=dark itemsPerPage=50
  othings settings set searchMode=llm llmProvider=openai llmApiKey=sk-...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseSettings(args)
			if err != nil {
				return err
			}
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			s, err := st.Settings().Save(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.printSettings(cmd, s.Redacted())
		},
	}
}

func (a *app) newSettingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			s, err := st.Settings().Reset(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSettings(cmd, s)
		},
	}
}

func (a *app) printSettings(cmd *cobra.Command, s types.Settings) error {
	if a.jsonMode {
		return printJSON(cmd, s)
	}
	tw := newTable(cmd)
	fmt.Fprintf(tw, "theme\t%s\n", s.Theme)
	fmt.Fprintf(tw, "defaultView\t%s\n", s.DefaultView)
	fmt.Fprintf(tw, "itemsPerPage\t%d\n", s.ItemsPerPage)
	fmt.Fprintf(tw, "searchMode\t%s\n", s.SearchMode)
	fmt.Fprintf(tw, "llmProvider\t%s\n", dash(s.LLMProvider))
	fmt.Fprintf(tw, "llmApiKey\t%s\n", dash(s.LLMAPIKey))
	fmt.Fprintf(tw, "notifications\t%t\n", s.Notifications)
	fmt.Fprintf(tw, "notificationTiming\t%d\n", s.NotificationTiming)
	return flushTable(tw)
}

// parseSettings turns key=value arguments into a patch. Range and enum
// checks are left to Settings.Validate.
func parseSettings(args []string) (types.SettingsPatch, error) {
	var p types.SettingsPatch
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, types.Invalid("settings", fmt.Errorf("invalid setting %q (expected key=value)", arg))
		}
		switch key {
		case "theme":
			p.Theme = &value
		case "defaultView":
			p.DefaultView = &value
		case "searchMode":
			p.SearchMode = &value
		case "llmProvider":
			p.LLMProvider = &value
		case "llmApiKey":
			p.LLMAPIKey = &value
		case "itemsPerPage", "notificationTiming":
			n, err := strconv.Atoi(value)
			if err != nil {
				return p, types.Invalid(key, types.ErrInvalidSetting)
			}
			if key == "itemsPerPage" {
				p.ItemsPerPage = &n
			} else {
				p.NotificationTiming = &n
			}
		case "notifications":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return p, types.Invalid(key, types.ErrInvalidSetting)
			}
			p.Notifications = &b
		default:
			return p, types.Invalid(key, fmt.Errorf("unknown setting (valid: %s)", strings.Join(settingKeys, ", ")))
		}
	}
	return p, nil
}
