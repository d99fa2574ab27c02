// Command inspect dumps the store key space for a running-less database,
// useful when debugging index or tombstone state.
package main

import (
	"flag"
	"fmt"
	"os"

	"whisperboard/pkg/logger"
	"whisperboard/pkg/store"
)

func main() {
	var dbPath, prefix string
	flag.StringVar(&dbPath, "db", "", "path to the pebble database directory")
	flag.StringVar(&prefix, "prefix", "", "key prefix to list (empty lists everything)")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.Init("error")
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list keys: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
