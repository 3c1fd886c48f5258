package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/gentam/nvm"
	"github.com/gentam/nvm/spinor"
)

func openFT2232H() (*ftdi.FT232H, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host initialization failed: %w", err)
	}

	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			return ft, nil
		}
	}

	return nil, errors.New("FT2232H not found")
}

func connectSPI() (*ftdi.FT232H, spi.Conn, gpio.PinIO, error) {
	ft, err := openFT2232H()
	if err != nil {
		return nil, nil, nil, err
	}

	sp, err := ft.SPI()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get SPI port: %w", err)
	}

	const clk = 30 * physic.MegaHertz // [AN_135|3.2.1 Divisors]
	mode := spi.Mode0                 // [AN_114|1.2] MPSSE supports mode 0 and 2 only
	conn, err := sp.Connect(clk, mode, 8)
	if err != nil {
		return nil, nil, nil, err
	}

	// ADBUS4 is the flash chip select on the reference wiring
	return ft, conn, ft.D4, nil
}

// probeConfig is just enough geometry to read the identification; the real
// configuration comes from spinor.Detect afterwards.
var probeConfig = spinor.Config{
	SectorSize:     4096,
	SectorCount:    1,
	PageSize:       256,
	PageAlign:      256,
	AddrBytes:      3,
	CmdRead:        spinor.OpRead,
	CmdProgram:     spinor.OpPageProgram,
	CmdSectorErase: spinor.OpErase4KB,
}

// openFlash brings the chip out of power down, identifies it and restarts
// the driver with the detected configuration. The returned closer powers
// the chip back down.
func openFlash() (*spinor.Driver, string, func(), error) {
	_, conn, cs, err := connectSPI()
	if err != nil {
		return nil, "", nil, err
	}

	drv := spinor.New(conn, cs)
	if err := drv.Start(probeConfig); err != nil {
		return nil, "", nil, err
	}
	if err := drv.PowerUp(); err != nil {
		return nil, "", nil, fmt.Errorf("flash power up failed: %w", err)
	}
	closer := func() {
		if err := drv.PowerDown(); err != nil {
			fmt.Fprintln(os.Stderr, "flash power down failed:", err)
		}
	}

	info, err := drv.Info()
	if err != nil {
		closer()
		return nil, "", nil, fmt.Errorf("read flash ID failed: %w", err)
	}
	name, cfg, ok := spinor.Detect(info.ID)
	if !ok {
		closer()
		return nil, "", nil, fmt.Errorf("unknown flash ID %X", info.ID)
	}
	if err := drv.Start(cfg); err != nil {
		closer()
		return nil, "", nil, err
	}
	return drv, name, closer, nil
}

// partitionFlags lets every data command scope itself to a sector range.
func partitionFlags(fs *flag.FlagSet) (start, count *int64) {
	start = fs.Int64("start", 0, "first sector of the partition to operate on")
	count = fs.Int64("sectors", 0, "partition sector count (0: whole chip)")
	return
}

func maybePartition(dev nvm.Device, start, count int64) nvm.Device {
	if count == 0 {
		return dev
	}
	p := nvm.NewPartition()
	if err := p.Start(nvm.PartitionConfig{Device: dev, StartSector: start, SectorCount: count}); err != nil {
		fatalf("%v", err)
	}
	return p
}
