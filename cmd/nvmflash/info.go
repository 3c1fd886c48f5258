package main

import (
	"fmt"

	"periph.io/x/host/v3/ftdi"
)

func infoCommand(args []string) {
	if len(args) > 0 {
		fatalUsage("info takes no arguments")
	}

	ft, _, _, err := connectSPI()
	if err != nil {
		fatalf("%v", err)
	}

	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Bridge:     %s (%#04x:%#04x)\n", i.Type, i.VenID, i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err == nil {
		fmt.Printf("Serial:     %s\n", ee.Serial)
		fmt.Printf("Desc:       %s\n", ee.Desc)
	}

	drv, name, closer, err := openFlash()
	if err != nil {
		fatalf("%v", err)
	}
	defer closer()

	dinfo, err := drv.Info()
	if err != nil {
		fatalf("read flash info failed: %v", err)
	}
	sr, err := drv.Status()
	if err != nil {
		fatalf("read flash status failed: %v", err)
	}

	fmt.Printf("Flash:      %s\n", name)
	fmt.Printf("JEDEC ID:   %X\n", dinfo.ID)
	fmt.Printf("Geometry:   %d sectors x %d bytes (%d bytes)\n",
		dinfo.SectorCount, dinfo.SectorSize, dinfo.Capacity())
	fmt.Printf("Status:     %v\n", sr)
}
