package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/local/foliocraft/internal/prefs"
)

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark|toggle]",
		Short: "Show or change the remembered color theme",
		Example: `  foliocraft theme
  foliocraft theme light
  foliocraft theme toggle`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prefs.Light), string(prefs.Dark), "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.prefsStore()
			if err != nil {
				return err
			}
			cur := prefs.Load(st)
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cur)
				return nil
			}
			next := cur
			switch args[0] {
			case "toggle":
				next = cur.Toggle()
			case string(prefs.Light), string(prefs.Dark):
				next = prefs.Theme(args[0])
			default:
				return fmt.Errorf("unknown theme %q (want light, dark or toggle)", args[0])
			}
			prefs.Save(st, next)
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}
