package main

import "flag"

func protectCommand(args []string, protect bool) {
	name := "unprotect"
	if protect {
		name = "protect"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var (
		addrStr string
		size    int64
		all     bool
	)
	fs.StringVar(&addrStr, "addr", "0", "start address")
	fs.Int64Var(&size, "n", 0, "number of bytes")
	fs.BoolVar(&all, "all", false, "apply to the whole device or partition")
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
	switch {
	case all && protect:
		err = dev.MassWriteProtect()
	case all:
		err = dev.MassWriteUnprotect()
	case protect:
		err = dev.WriteProtect(parseAddr(addrStr), size)
	default:
		err = dev.WriteUnprotect(parseAddr(addrStr), size)
	}
	if err != nil {
		fatalf("%s flash failed: %v", name, err)
	}
}
