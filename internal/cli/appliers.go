package cli

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/protocol"
)

// AppliersOptions holds flags for the appliers command.
type AppliersOptions struct {
	*RootOptions
	ValueType string
}

// ApplierInfo describes one registered applier.
type ApplierInfo struct {
	Intent  protocol.Intent `json:"intent"`
	Version int32           `json:"version"`
	Latest  bool            `json:"latest"`
	Applier string          `json:"applier"`
}

// NewAppliersCommand creates the appliers command.
func NewAppliersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppliersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "appliers",
		Short: "List the registered event appliers",
		Long: `List every (intent, version) pair replay can apply, with the applier
that handles it.

Examples:
  eventstate appliers
  eventstate appliers --value-type USER_TASK --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppliers(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ValueType, "value-type", "", "only list appliers of this value type, e.g. USER_TASK")

	return cmd
}

func runAppliers(opts *AppliersOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	ps, ea, err := openState(":memory:", opts.config().StateOptions())
	if err != nil {
		return err
	}
	defer ps.DB.Close()

	infos := []ApplierInfo{}
	for _, reg := range ea.Registered() {
		if opts.ValueType != "" && !strings.EqualFold(string(reg.Intent.ValueType()), opts.ValueType) {
			continue
		}
		infos = append(infos, ApplierInfo{
			Intent:  reg.Intent,
			Version: reg.Version,
			Latest:  reg.Version == ea.LatestVersion(reg.Intent),
			Applier: reg.TypeName(),
		})
	}

	if out.JSON() {
		return out.Success(infos)
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	out.Writer = tw
	out.Printf("INTENT\tVERSION\tAPPLIER\n")
	for _, info := range infos {
		latest := ""
		if info.Latest {
			latest = " (latest)"
		}
		out.Printf("%s\t%d%s\t%s\n", info.Intent, info.Version, latest, info.Applier)
	}
	return tw.Flush()
}
