package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		path := appConfig.CacheFilePath()

		responses := cache.New(cache.Options{})
		if err := cache.LoadFromFile(responses, path); err != nil {
			return err
		}

		info := struct {
			Enabled bool   `json:"enabled"`
			Path    string `json:"path"`
			Entries int    `json:"entries"`
			Size    int64  `json:"size"`
		}{Enabled: appConfig.CacheEnabled, Path: path, Entries: responses.Len()}
		if st, err := os.Stat(path); err == nil {
			info.Size = st.Size()
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), info)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, titleStyle.Render("Response cache"))
		fmt.Fprintf(w, "  Path: %s\n", info.Path)
		fmt.Fprintf(w, "  Enabled: %t\n", info.Enabled)
		fmt.Fprintf(w, "  Entries: %d (limit %d)\n", info.Entries, appConfig.CacheMaxEntries)
		fmt.Fprintf(w, "  Size: %d bytes\n", info.Size)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.CacheFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", path)
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
