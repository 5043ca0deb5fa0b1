package modbusaccess

import (
	"fmt"

	"github.com/cepro/solarmonitor/telemetry"
)

// PollBlock reads a single register `block` from the `client` in one request and decodes every register of interest.
func PollBlock(client RegisterReader, block RegisterBlock) (map[string]telemetry.Field, error) {
	words, err := ReadBlock(client, block.StartAddr, block.NumRegisters)
	if err != nil {
		return nil, err
	}
	return DecodeBlock(block, words)
}

// PollRegister reads and decodes a single unscaled register with its own request.
func PollRegister(client RegisterReader, register Register) (telemetry.Field, error) {
	if register.DataType.scaled {
		return telemetry.Field{}, fmt.Errorf("register %d: %s needs a scale factor, poll it as a block", register.StartAddr, register.DataType.name)
	}

	words, err := ReadBlock(client, register.StartAddr, register.DataType.numRegisters)
	if err != nil {
		return telemetry.Field{}, err
	}

	return decodeRegister(register, words, 0), nil
}

// ReadBlock reads `quantity` holding registers starting at `addr`.
func ReadBlock(client RegisterReader, addr, quantity uint16) ([]uint16, error) {
	bytes, err := client.ReadHoldingRegisters(addr, quantity)
	if err != nil {
		return nil, fmt.Errorf("read registers %d-%d: %w", addr, addr+quantity-1, err)
	}
	if len(bytes) != int(quantity)*2 {
		return nil, fmt.Errorf("read registers %d-%d: got %d bytes, expected %d", addr, addr+quantity-1, len(bytes), quantity*2)
	}
	return wordsFromBytes(bytes), nil
}

// DecodeBlock extracts each register of interest from the words of a block. Scale factors are always decoded from
// the same block so that a value and its exponent come from one atomic read.
func DecodeBlock(block RegisterBlock, words []uint16) (map[string]telemetry.Field, error) {

	if len(words) != int(block.NumRegisters) {
		return nil, fmt.Errorf("block '%s' has %d registers, got %d", block.Name, block.NumRegisters, len(words))
	}

	slice := func(addr, n uint16) ([]uint16, error) {
		// sanity check the configuration to avoid out of bound panics
		offset := int(addr) - int(block.StartAddr)
		if offset < 0 {
			return nil, fmt.Errorf("register %d precedes block", addr)
		}
		if offset+int(n) > len(words) {
			return nil, fmt.Errorf("register %d exceeds block", addr)
		}
		return words[offset : offset+int(n)], nil
	}

	fields := make(map[string]telemetry.Field, len(block.Registers))
	for name, register := range block.Registers {

		registerWords, err := slice(register.StartAddr, register.DataType.numRegisters)
		if err != nil {
			return nil, fmt.Errorf("register configuration for '%s': %w", name, err)
		}

		var sf int16
		if register.DataType.scaled {
			sfAddr, ok := block.ScaleFactors[register.ScaleFactor]
			if !ok {
				return nil, fmt.Errorf("register configuration for '%s': unknown scale factor '%s'", name, register.ScaleFactor)
			}
			sfWords, err := slice(sfAddr, 1)
			if err != nil {
				return nil, fmt.Errorf("scale factor configuration for '%s': %w", register.ScaleFactor, err)
			}
			if !scaleFactorImplemented(sfWords[0]) {
				fields[name] = telemetry.AbsentField(register.DataType.kind)
				continue
			}
			sf = DecodeScaleFactor(sfWords[0])
		}

		fields[name] = decodeRegister(register, registerWords, sf)
	}

	return fields, nil
}

func decodeRegister(register Register, words []uint16, sf int16) telemetry.Field {
	val, ok := register.DataType.decodeFunc(words, sf)
	if ok && register.ScalingFunc != nil {
		val = register.ScalingFunc(val)
	}
	return telemetry.OptionalField(register.DataType.kind, val, ok)
}
