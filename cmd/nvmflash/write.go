package main

import (
	"flag"
	"os"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		filename   string
		addrStr    string
		eraseFirst bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.StringVar(&addrStr, "addr", "0", "start address")
	fs.BoolVar(&eraseFirst, "e", false, "erase the target range first")
	start, count := partitionFlags(fs)
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		fatalf("failed to read file: %v", err)
	}

	drv, _, closer, err := openFlash()
	if err != nil {
		fatalf("%v", err)
	}
	defer closer()

	dev := maybePartition(drv, *start, *count)
	addr := parseAddr(addrStr)

	if eraseFirst {
		if err := dev.Erase(addr, int64(len(data))); err != nil {
			fatalf("erase flash failed: %v", err)
		}
	}
	if err := dev.Write(addr, data); err != nil {
		fatalf("write flash failed: %v", err)
	}
	if err := dev.Sync(); err != nil {
		fatalf("flash did not settle: %v", err)
	}
}
