package cli

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"VeilKit/pkg/junk"
	"VeilKit/pkg/logger"
)

var junkDryRun bool

var junkCmd = &cobra.Command{
	Use:   "junk",
	Short: "Find and remove system junk",
}

var junkScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List cleanable junk locations and their sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := junk.NewManager(logger.Get())

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Scanning junk locations..."
		s.Start()
		items := manager.Scan(cmd.Context())
		s.Stop()

		if len(items) == 0 {
			fmt.Println(color.GreenString("Nothing to clean."))
			return nil
		}

		var total int64
		var category junk.Category
		for _, item := range items {
			if item.Category != category {
				category = item.Category
				fmt.Printf("\n%s\n", color.CyanString(string(category)))
			}
			line := fmt.Sprintf("  %-28s %10s  %s", item.Name, formatSize(item.Size), item.Path)
			if item.Warning != "" {
				line += color.YellowString("  (%s)", item.Warning)
			}
			fmt.Println(line)
			total += item.Size
		}
		fmt.Printf("\nTotal: %s\n", color.GreenString(formatSize(total)))
		return nil
	},
}

var junkCleanCmd = &cobra.Command{
	Use:   "clean <path>...",
	Short: "Delete the selected junk locations",
	Long: `Clean deletes the contents of the given locations. Only paths
reported by scan are accepted; anything else is refused. Use --dry-run
to preview exactly what would be removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := junk.NewManager(logger.Get())

		if junkDryRun {
			preview, err := manager.Estimate(args)
			if err != nil {
				return err
			}
			fmt.Printf("Would delete %d file(s), %s\n", preview.TotalFiles, formatSize(preview.TotalSize))
			for _, f := range preview.FileList {
				fmt.Println("  " + f)
			}
			if preview.TotalFiles > len(preview.FileList) {
				fmt.Printf("  ... and %d more\n", preview.TotalFiles-len(preview.FileList))
			}
			for _, w := range preview.Warnings {
				fmt.Println(color.YellowString("! %s", w))
			}
			return nil
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Cleaning..."
		s.Start()
		result, err := manager.Clean(cmd.Context(), args, func(current, total int, name string, freed int64) {
			s.Suffix = fmt.Sprintf(" Cleaning %s (%d/%d)", name, current, total)
		})
		s.Stop()
		if err != nil {
			return err
		}

		fmt.Println(color.GreenString("✓ %d file(s) removed, %s freed", result.FilesDeleted, formatSize(result.BytesFreed)))
		for _, e := range result.Errors {
			fmt.Println(color.RedString("✗ %s", e))
		}
		if result.Cancelled {
			fmt.Println(color.YellowString("! run cancelled; remaining locations untouched"))
		}
		return nil
	},
}

func init() {
	junkCleanCmd.Flags().BoolVar(&junkDryRun, "dry-run", false, "preview without deleting")
	junkCmd.AddCommand(junkScanCmd, junkCleanCmd)
	rootCmd.AddCommand(junkCmd)
}

// formatSize renders a byte count for terminal output.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
