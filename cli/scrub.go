package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"VeilKit/internal/core"
	"VeilKit/pkg/logger"
	"VeilKit/pkg/metascrub"
)

var (
	scrubOutputDir string
	scrubGPS       bool
	scrubAuthor    bool
	scrubDate      bool
	scrubAll       bool
	analyzeOnly    bool
)

var scrubCmd = &cobra.Command{
	Use:   "scrub <file>...",
	Short: "Strip metadata from documents and images",
	Long: `Scrub writes a cleaned copy of each file as <name>_clean.<ext>.
Originals are never modified. Supported: jpg, jpeg, png, pdf, docx,
xlsx, pptx, zip.

With --analyze the files are only inspected and a report is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrub,
}

func init() {
	scrubCmd.Flags().StringVarP(&scrubOutputDir, "output-dir", "o", "", "write cleaned copies into this directory")
	scrubCmd.Flags().BoolVar(&scrubGPS, "gps", false, "remove GPS and location data")
	scrubCmd.Flags().BoolVar(&scrubAuthor, "author", false, "remove author, creator and software tags")
	scrubCmd.Flags().BoolVar(&scrubDate, "date", false, "remove creation and modification dates")
	scrubCmd.Flags().BoolVarP(&scrubAll, "all", "a", false, "remove everything removable")
	scrubCmd.Flags().BoolVar(&analyzeOnly, "analyze", false, "report metadata without writing anything")
	rootCmd.AddCommand(scrubCmd)
}

func runScrub(cmd *cobra.Command, args []string) error {
	scrubber := metascrub.NewScrubber(logger.Get())

	if analyzeOnly {
		for _, path := range args {
			report, err := scrubber.Analyze(path)
			if err != nil {
				fmt.Println(color.RedString("✗ %s: %v", path, err))
				continue
			}
			printReport(path, report)
		}
		return nil
	}

	opts := metascrub.Options{GPS: scrubGPS, Author: scrubAuthor, Date: scrubDate}
	if scrubAll {
		opts = metascrub.Options{GPS: true, Author: true, Date: true}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Scrubbing metadata..."
	s.Start()

	result, err := core.RunBatch(cmd.Context(), args, func(ctx context.Context, path string) (int64, error) {
		_, err := scrubber.Clean(path, scrubOutputDir, opts)
		return 0, err
	}, func(p core.Progress) {
		s.Suffix = fmt.Sprintf(" Scrubbing %s (%d/%d)", p.CurrentFile, p.Index, p.Total)
	})
	s.Stop()
	if err != nil {
		return err
	}

	printBatchOutcome("scrubbed", result)
	return nil
}

func printReport(path string, report *metascrub.Report) {
	fmt.Printf("%s (%s)\n", color.CyanString(path), report.FileType)
	if report.HasGPS {
		fmt.Println(color.RedString("  GPS:      %s", report.GPSInfo))
	}
	if report.HasAuthor {
		fmt.Println(color.YellowString("  Author:   identifying author/creator tags present"))
	}
	if report.CreationDate != "" {
		fmt.Printf("  Created:  %s\n", report.CreationDate)
	}
	if report.CameraInfo != "" {
		fmt.Printf("  Camera:   %s\n", report.CameraInfo)
	}
	if report.SoftwareInfo != "" {
		fmt.Printf("  Software: %s\n", report.SoftwareInfo)
	}
	if len(report.RawTags) == 0 {
		fmt.Println(color.GreenString("  no metadata found"))
	}
}
