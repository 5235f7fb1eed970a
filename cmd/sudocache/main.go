package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oarkflow/sudocache"
	"github.com/oarkflow/sudocache/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "filter":
		handleFilter()
	case "check":
		handleCheck()
	case "purge":
		handlePurge()
	case "refreshed":
		handleRefreshed()
	case "stats":
		handleStats()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("sudocache - inspect and maintain the sudo rule cache")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sudocache filter <username> <uid> [groups-csv]   - print the rule selection filter for a user")
	fmt.Println("  sudocache check <rules-file> [timestamp]         - list rules active at the timestamp (yyyymmddHHMMSSZ)")
	fmt.Println("  sudocache purge <config> [filter]                - purge matching rules (all when no filter)")
	fmt.Println("  sudocache refreshed <config> [true|false]        - read or set the full-refresh flag")
	fmt.Println("  sudocache stats <config>                         - show cache statistics")
	fmt.Println()
	fmt.Println("Config formats: .yaml, .yml, .json")
}

func handleFilter() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: sudocache filter <username> <uid> [groups-csv]")
		os.Exit(1)
	}
	uid, err := strconv.ParseUint(os.Args[3], 10, 64)
	if err != nil {
		fmt.Printf("Bad uid %q: %v\n", os.Args[3], err)
		os.Exit(1)
	}
	var groups []string
	if len(os.Args) > 4 && os.Args[4] != "" {
		groups = strings.Split(os.Args[4], ",")
	}

	id := sudocache.Identity{
		Username: os.Args[2],
		UID:      uid,
		Groups:   groups,
		Flags:    sudocache.FilterStandard,
	}
	fmt.Println(sudocache.BuildIdentityFilter(id).String())
}

// checkFile is the on-disk shape the check command reads.
type checkFile struct {
	Rules []struct {
		Name      string   `yaml:"name"`
		NotBefore []string `yaml:"not_before"`
		NotAfter  []string `yaml:"not_after"`
	} `yaml:"rules"`
}

func handleCheck() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: sudocache check <rules-file> [timestamp]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error reading rules: %v\n", err)
		os.Exit(1)
	}
	var file checkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		fmt.Printf("Error parsing rules: %v\n", err)
		os.Exit(1)
	}

	rules := make([]*sudocache.Rule, 0, len(file.Rules))
	for _, in := range file.Rules {
		rule := sudocache.NewRule()
		rule.Set(sudocache.AttrName, in.Name)
		if len(in.NotBefore) > 0 {
			rule.Set(sudocache.AttrNotBefore, in.NotBefore...)
		}
		if len(in.NotAfter) > 0 {
			rule.Set(sudocache.AttrNotAfter, in.NotAfter...)
		}
		rules = append(rules, rule)
	}

	var now time.Time
	if len(os.Args) > 3 {
		now, err = time.ParseInLocation("20060102150405Z", os.Args[3], time.UTC)
		if err != nil {
			fmt.Printf("Bad timestamp %q: %v\n", os.Args[3], err)
			os.Exit(1)
		}
	}

	active, err := sudocache.FilterRulesByTime(rules, now)
	if err != nil {
		fmt.Printf("Error filtering rules: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d of %d rules active\n", len(active), len(rules))
	for _, rule := range active {
		fmt.Printf("  %s\n", rule.Name())
	}
}

func openCache(path string) (*sudocache.Cache, *stores.Stores) {
	cfg, err := sudocache.NewConfigLoader().LoadFile(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	cache, st, err := stores.NewCache(cfg)
	if err != nil {
		fmt.Printf("Error opening stores: %v\n", err)
		os.Exit(1)
	}
	return cache, st
}

func handlePurge() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: sudocache purge <config> [filter]")
		os.Exit(1)
	}
	cache, st := openCache(os.Args[2])
	defer st.Close()

	filter := ""
	if len(os.Args) > 3 {
		filter = os.Args[3]
	}
	if err := cache.PurgeMatching(context.Background(), filter); err != nil {
		fmt.Printf("Error purging rules: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func handleRefreshed() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: sudocache refreshed <config> [true|false]")
		os.Exit(1)
	}
	cache, st := openCache(os.Args[2])
	defer st.Close()
	ctx := context.Background()

	if len(os.Args) > 3 {
		value, err := strconv.ParseBool(os.Args[3])
		if err != nil {
			fmt.Printf("Bad value %q: %v\n", os.Args[3], err)
			os.Exit(1)
		}
		if err := cache.SetRefreshed(ctx, value); err != nil {
			fmt.Printf("Error setting refreshed flag: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("OK")
		return
	}

	refreshed, err := cache.GetRefreshed(ctx)
	if err != nil {
		fmt.Printf("Error reading refreshed flag: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("refreshed: %v\n", refreshed)
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: sudocache stats <config>")
		os.Exit(1)
	}
	cache, st := openCache(os.Args[2])
	defer st.Close()
	ctx := context.Background()

	rules, err := st.Records.SearchRecords(ctx, cache.Subtree(), "")
	if err != nil {
		fmt.Printf("Error listing rules: %v\n", err)
		os.Exit(1)
	}
	refreshed, err := cache.GetRefreshed(ctx)
	if err != nil {
		fmt.Printf("Error reading refreshed flag: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("subtree:   %s\n", cache.Subtree())
	fmt.Printf("rules:     %d\n", len(rules))
	fmt.Printf("refreshed: %v\n", refreshed)
	if sqlStore, ok := st.Records.(*stores.SQLRecordStore); ok {
		if last, err := sqlStore.LastUpdated(ctx, cache.Subtree()); err == nil && !last.IsZero() {
			fmt.Printf("updated:   %s\n", last.UTC().Format(time.RFC3339))
		}
	}
}
