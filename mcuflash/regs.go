package mcuflash

// Flash controller register block, [PM0075|2.3 Register descriptions].
// Offsets are relative to the controller base the Bus implementation maps.
const (
	regACR     = 0x00
	regKEYR    = 0x04
	regOPTKEYR = 0x08
	regSR      = 0x0C
	regCR      = 0x10
	regAR      = 0x14
)

// Control register unlock keys. The sequence KEY1 then KEY2 must be
// written to KEYR back to back; anything else locks the controller out
// until reset.
const (
	key1 = 0x45670123
	key2 = 0xCDEF89AB

	optKey1 = key1
	optKey2 = key2
)

// SR bits
const (
	srBusy   = 1 << 0
	srPGErr  = 1 << 2 // programming error (cell not erased, bad width)
	srWRPErr = 1 << 4 // write-protection error
	srEOP    = 1 << 5
)

// CR bits
const (
	crPG     = 1 << 0 // program mode
	crPER    = 1 << 1 // sector (page) erase mode
	crMER    = 1 << 2 // mass erase mode
	crOPTPG  = 1 << 4 // option byte program mode
	crOPTER  = 1 << 5 // option byte erase mode
	crStart  = 1 << 6 // trigger erase
	crLock   = 1 << 7
	crOPTWRE = 1 << 9 // option write enable, set by the OPTKEYR sequence
)
