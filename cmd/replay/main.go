// Command replay reads the compressed plan logs and prints a summary, or
// dumps matching entries as JSON lines. It is the offline view over what
// cmd/server recorded.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"fieldline.dev/internal/persistence/planlog"
)

func main() {
	var (
		plansDir = flag.String("plans", "./data/plans", "dir containing plans-*.jsonl.zst")
		robot    = flag.String("robot", "", "filter by robot name (optional)")
		dump     = flag.Bool("dump", false, "print matching entries as JSON lines")
	)
	flag.Parse()

	files, err := listPlanFiles(*plansDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list plans:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no plan files found in", *plansDir)
		os.Exit(1)
	}

	total, failed := 0, 0
	totalTime := 0.0
	byCode := map[string]int{}
	for _, path := range files {
		if err := scanFile(path, func(e planlog.Entry) {
			if *robot != "" && e.Result.Robot != *robot {
				return
			}
			total++
			if e.Result.OK {
				totalTime += e.Result.TravelTime
			} else {
				failed++
				byCode[e.Result.Code]++
			}
			if *dump {
				b, _ := json.Marshal(e)
				fmt.Println(string(b))
			}
		}); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}

	succeeded := total - failed
	fmt.Printf("plans: total=%d ok=%d failed=%d\n", total, succeeded, failed)
	if succeeded > 0 {
		fmt.Printf("avg travel time: %.3fs\n", totalTime/float64(succeeded))
	}
	for code, n := range byCode {
		fmt.Printf("  %s: %d\n", code, n)
	}
}

func listPlanFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "plans-") && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

func scanFile(path string, fn func(planlog.Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e planlog.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		fn(e)
	}
	return sc.Err()
}
