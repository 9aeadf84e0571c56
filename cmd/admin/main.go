// Command admin inspects the plan index kept by cmd/server.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldline.dev/internal/persistence/plandb"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "stats":
			statsCmd(os.Args[2:])
			return
		case "failures":
			failuresCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <stats|failures> [flags]")
	os.Exit(2)
}

func openIndex(dataDir string) *plandb.SQLiteIndex {
	path := filepath.Join(dataDir, "plans.db")
	idx, err := plandb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	return idx
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	robot := fs.String("robot", "", "robot name")
	_ = fs.Parse(args)

	if strings.TrimSpace(*robot) == "" {
		fmt.Fprintln(os.Stderr, "missing -robot")
		os.Exit(2)
	}

	idx := openIndex(*dataDir)
	defer idx.Close()

	st, err := idx.StatsFor(*robot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats:", err)
		os.Exit(1)
	}
	fmt.Printf("robot=%s total=%d ok=%d failed=%d avg_time=%.3fs\n",
		*robot, st.Total, st.Succeeded, st.Failed, st.AvgTime)
}

func failuresCmd(args []string) {
	fs := flag.NewFlagSet("failures", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir)
	defer idx.Close()

	counts, err := idx.FailureCounts()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failures:", err)
		os.Exit(1)
	}
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Printf("%s: %d\n", c, counts[c])
	}
}
