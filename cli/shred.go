package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"VeilKit/internal/core"
	"VeilKit/pkg/logger"
	"VeilKit/pkg/shredder"
)

var (
	shredMethod string
	shredDryRun bool
	shredYes    bool
)

var shredCmd = &cobra.Command{
	Use:   "shred <path>...",
	Short: "Overwrite and permanently delete files",
	Long: `Shred overwrites each file with the selected pass pattern, renames
it and removes it. Directories are destroyed recursively; symlinks are
removed without following them. There is no undo.

Methods: simple (1 pass), dod3 (3 passes, default), dod7 (7 passes),
gutmann (35 passes).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShred,
}

func init() {
	shredCmd.Flags().StringVarP(&shredMethod, "method", "m", string(shredder.MethodDoD3), "overwrite method")
	shredCmd.Flags().BoolVar(&shredDryRun, "dry-run", false, "preview without deleting")
	shredCmd.Flags().BoolVarP(&shredYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(shredCmd)
}

func runShred(cmd *cobra.Command, args []string) error {
	eraser := shredder.NewEraser(logger.Get())

	report := eraser.DryRun(args)
	for _, blocked := range report.Blocked {
		fmt.Println(color.RedString("✗ %s", blocked))
	}
	for _, plan := range report.Items {
		fmt.Printf("  %s (%s)\n", plan.Path, formatSize(plan.Size))
		for _, w := range plan.Warnings {
			fmt.Println(color.YellowString("    ! %s", w))
		}
	}
	if len(report.Items) == 0 {
		return fmt.Errorf("nothing eligible to shred")
	}
	if shredDryRun {
		return nil
	}

	if !shredYes && !confirm(fmt.Sprintf("Permanently destroy %d item(s)? This cannot be undone", len(report.Items))) {
		fmt.Println("Aborted.")
		return nil
	}

	method := shredder.Method(shredMethod)
	paths := make([]string, 0, len(report.Items))
	for _, plan := range report.Items {
		paths = append(paths, plan.Path)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Shredding..."
	s.Start()

	result, err := core.RunBatch(cmd.Context(), paths, func(ctx context.Context, path string) (int64, error) {
		return eraser.Erase(ctx, path, method, func(file string, percent int) {
			s.Suffix = fmt.Sprintf(" Shredding %s (%d%%)", file, percent)
		})
	}, nil)
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Println(color.GreenString("✓ %d item(s) destroyed, %s overwritten", result.Succeeded, formatSize(result.BytesFreed)))
	for _, f := range result.Failed {
		fmt.Println(color.RedString("✗ %s: %s", f.Path, f.Message))
	}
	if result.Cancelled {
		fmt.Println(color.YellowString("! run cancelled; remaining items untouched"))
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
