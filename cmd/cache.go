package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prwatch/internal/cache"
)

// cacheCmd groups classification cache maintenance commands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the classification cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached classifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(cfg.Cache.Driver, cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open classification cache: %w", err)
		}
		defer store.Close()

		keys, err := store.Keys()
		if err != nil {
			return fmt.Errorf("failed to list cache keys: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tIMPACT\tDESCRIPTION")
		for _, raw := range keys {
			key, ok := parseKey(raw)
			if !ok {
				continue
			}
			cl, ok := store.Get(key)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", raw, cl.Impact, cl.Description)
		}
		return w.Flush()
	},
}

func init() {
	cacheCmd.PersistentFlags().String("cache", cache.DefaultPath, "path of the classification cache")
	cacheCmd.AddCommand(cacheListCmd)
}

// parseKey splits a stored "owner/repo:42" key.
func parseKey(raw string) (cache.Key, bool) {
	i := strings.LastIndex(raw, ":")
	if i <= 0 {
		return cache.Key{}, false
	}
	n, err := strconv.Atoi(raw[i+1:])
	if err != nil {
		return cache.Key{}, false
	}
	return cache.Key{Repository: raw[:i], Number: n}, true
}
