//go:build mage

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type lineCounts struct {
	Prod  int            `json:"go_loc_prod"`
	Test  int            `json:"go_loc_test"`
	Total int            `json:"go_loc"`
	ByPkg map[string]int `json:"by_package"`
}

// Stats prints Go lines of code per package. Set STATS_JSON=1 for a JSON line.
func Stats() error {
	c := lineCounts{ByPkg: map[string]int{}}
	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch {
			case path == "vendor", path == ".git", path == binaryDir, path == "magefiles",
				strings.HasPrefix(info.Name(), "_"):
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") {
			c.Test += n
		} else {
			c.Prod += n
		}
		c.ByPkg[filepath.Dir(path)] += n
		return nil
	})
	if err != nil {
		return err
	}
	c.Total = c.Prod + c.Test

	if os.Getenv("STATS_JSON") != "" {
		line, err := json.Marshal(c)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
		return nil
	}
	fmt.Printf("Lines of code (Go, production): %d\n", c.Prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", c.Test)
	fmt.Printf("Lines of code (Go, total):      %d\n", c.Total)
	for pkg, n := range c.ByPkg {
		fmt.Printf("  %-28s %d\n", pkg, n)
	}
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
