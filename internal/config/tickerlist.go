package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadTickerList reads the newline-delimited ticker list, reloaded once per
// Scanner batch boundary (spec §6.3). Blank lines and lines starting with
// '#' are skipped.
func LoadTickerList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return symbols, nil
}
