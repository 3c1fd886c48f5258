package main

import "flag"

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		addrStr string
		size    int64
		all     bool
	)
	fs.StringVar(&addrStr, "addr", "0", "start address")
	fs.Int64Var(&size, "n", 0, "number of bytes to erase")
	fs.BoolVar(&all, "all", false, "erase the whole device or partition")
	start, count := partitionFlags(fs)
	fs.Parse(args)

	if !all && size == 0 {
		fatalUsage("-n or -all is required")
	}

	drv, _, closer, err := openFlash()
	if err != nil {
		fatalf("%v", err)
	}
	defer closer()

	dev := maybePartition(drv, *start, *count)
	if all {
		err = dev.MassErase()
	} else {
		err = dev.Erase(parseAddr(addrStr), size)
	}
	if err != nil {
		fatalf("erase flash failed: %v", err)
	}
	if err := dev.Sync(); err != nil {
		fatalf("flash did not settle: %v", err)
	}
}
