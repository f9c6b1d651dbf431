package cmd

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

const tokensReference = `# Mask tokens

Prefix each token with ` + "`%`" + `. Anything that is not a token is copied as is.

| Token | Meaning | Example |
|-------|---------|---------|
| d | day of month | 6 |
| dd | day of month, zero padded | 06 |
| ddd | short day name | Mon |
| dddd | long day name | Monday |
| m | month | 9 |
| mm | month, zero padded | 09 |
| mmm | short month name | Sep |
| mmmm | long month name | September |
| yy | two digit year | 11 |
| yyyy | full year | 2011 |
| h / hh | 12-hour clock, plain / padded | 9 / 09 |
| H / HH | 24-hour clock, plain / padded | 21 / 21 |
| M / MM | minutes, plain / padded | 5 / 05 |
| s / ss | seconds, plain / padded | 7 / 07 |
| t / tt | a or p / am or pm | p / pm |
| T / TT | A or P / AM or PM | P / PM |
| S | ordinal suffix of the day | st, nd, rd, th |
| xs xm xh | elapsed seconds, minutes, hours (rounded) | 42 |
| xd xy | elapsed days, years (whole) | 3 |

## Example

` + "```yaml" + `
masks:
  - distance: 86400
    mask: "%xh hours ago"
past_mask: "%dddd, %mmmm %d%S %yyyy"
` + "```" + `
`

var tokensCmd = &cobra.Command{
	Use:         "tokens",
	Short:       "Show the mask token reference",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipConfig: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := glamour.Render(tokensReference, "auto")
		if err != nil {
			return fmt.Errorf("rendering reference: %w", err)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}
