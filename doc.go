// Package nvm abstracts block-erasable non-volatile memory behind one
// capability contract. Heterogeneous backends — JEDEC SPI NOR chips
// (package spinor), MCU-internal program flash (package mcuflash) — expose
// the same Device interface, and Partition composes any Device into
// nestable, address-translated sub-devices.
//
// # References:
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [SST25VF016B]: Microchip/SST 16 Mbit SPI Serial Flash (https://ww1.microchip.com/downloads/en/DeviceDoc/S71271_04.pdf)
//
// MCU Flash
//   - [PM0075]: STM32F10xxx Flash memory microcontrollers programming manual (https://www.st.com/resource/en/programming_manual/pm0075-stm32f10xxx-flash-memory-microcontrollers-stmicroelectronics.pdf)
//   - [RM0090]: STM32F405/415, STM32F407/417 reference manual, Embedded Flash memory interface (https://www.st.com/resource/en/reference_manual/rm0090-stm32f405415-stm32f407417-stm32f427437-and-stm32f429439-advanced-armbased-32bit-mcus-stmicroelectronics.pdf)
package nvm
