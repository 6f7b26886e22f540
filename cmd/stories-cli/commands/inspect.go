package commands

import (
	"os"
	"sort"

	"casevault-backend/lib/osutil"
	"casevault-backend/lib/scrapers/customerstories"
	"casevault-backend/services/stories"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func countAssets(story customerstories.StoryRecord) (downloaded, expected int) {
	for _, local := range []string{story.Company.LogoLocal, story.Media.HeaderImageLocal} {
		expected++
		if local != "" {
			downloaded++
		}
	}
	for _, product := range story.MicrosoftProducts {
		expected++
		if product.IconLocal != "" {
			downloaded++
		}
	}
	return downloaded, expected
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <path/to/dataset.json>",
	Short: "Prints a per-page summary of a scraped dataset.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataset, err := stories.ReadDataset(args[0])
		if err != nil {
			osutil.Fatal("failed to read dataset", err)
		}

		downloadedByPage := map[int]int{}
		expectedByPage := map[int]int{}
		for _, story := range dataset.Stories {
			downloaded, expected := countAssets(story)
			downloadedByPage[story.Page] += downloaded
			expectedByPage[story.Page] += expected
		}

		pages := []int{}
		for page := range dataset.Metadata.StoriesPerPage {
			pages = append(pages, page)
		}
		sort.Ints(pages)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Page", "Stories", "Assets downloaded", "Assets expected"})
		for _, page := range pages {
			t.AppendRow(table.Row{
				page,
				dataset.Metadata.StoriesPerPage[page],
				downloadedByPage[page],
				expectedByPage[page],
			})
		}
		t.AppendFooter(table.Row{
			"Total",
			dataset.Metadata.TotalStories,
			"",
			"",
		})
		t.Render()
	},
}
