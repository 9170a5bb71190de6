package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangago/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all titles in your library",
	Long:  "Display every title in your library in a formatted table",
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := data.NewRepository(appCfg.LibraryPath)
		cobra.CheckErr(err)
		defer repo.Close()

		titles, err := repo.ListTitles()
		cobra.CheckErr(err)

		if len(titles) == 0 {
			fmt.Println("Library is empty. Use 'mangago search' to find titles to download.")
			return
		}

		columns := []table.Column{
			{Title: "Name", Width: 40},
			{Title: "Author", Width: 20},
			{Title: "Source", Width: 10},
			{Title: "Chapters", Width: 10},
			{Title: "Downloaded", Width: 12},
		}

		rows := []table.Row{}
		for _, title := range titles {
			total, downloaded, err := repo.ChapterCounts(title.ID)
			if err != nil {
				continue
			}
			rows = append(rows, table.Row{
				truncateString(title.Name, 38),
				truncateString(title.Author, 18),
				title.Source,
				fmt.Sprintf("%d", total),
				fmt.Sprintf("%d", downloaded),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = s.Selected.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(false)
		t.SetStyles(s)

		fmt.Printf("\nLibrary (%d titles)\n\n", len(titles))
		fmt.Println(t.View())
	},
}
