// Package bridge carries register and flash accesses to a target over a
// byte stream, so the flash driver can run on a host against a device
// that runs a small agent.
//
// # Frame Format
//
// Requests and responses share one frame layout:
//
//	[SOP 0x01][CMD/STATUS][LEN_L][LEN_H][DATA...][CHK_L][CHK_H][EOP 0x17]
//
// The checksum is the 16-bit two's complement of the byte sum from
// CMD/STATUS through DATA. Multi-byte fields are little-endian.
//
// # Commands
//
// Every request payload starts with a sequence byte. Replies echo it with
// the command byte, and the address for commands that carry one:
//
//	Ping    0x50  [SEQ]                  -> [SEQ][CMD]
//	Read32  0x52  [SEQ][ADDR]            -> [SEQ][CMD][ADDR][VALUE]
//	Write32 0x57  [SEQ][ADDR][VALUE]     -> [SEQ][CMD][ADDR]
//	Write16 0x48  [SEQ][ADDR][HALF]      -> [SEQ][CMD][ADDR]
//
// A Client discards replies whose echo does not match the outstanding
// request, so a reply that arrives after a timeout is never taken as the
// answer to the next one. Readers discard bytes up to the next SOP.
//
// A non-zero status comes back as a *ProtocolError.
//
// # Usage
//
// Client implements stm32.HalfWordBus:
//
//	port, err := bridge.Open("/dev/ttyACM0", bridge.SerialConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	bus := stm32.Restrict(port, stm32.RegisterWindow, stm32.FlashWindow)
//	ctrl := fpec.New(stm32.NewRegisters(bus), stm32.NewFlash(bus))
//
// Server is the agent side; NewServer(sim.New()) gives a host-only
// target for tests.
package bridge
