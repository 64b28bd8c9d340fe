package storage

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog/log"
)

// EEPROM is byte-writable non-volatile memory. Every write is synchronous.
// When opened from a file the memory is mapped and each byte write is
// flushed before WriteU8 returns, so callers must treat it as slow.
type EEPROM struct {
	cells
	file   *os.File
	mapped mmap.MMap
}

// NewEEPROM creates a RAM-backed EEPROM of the given capacity. Its cells
// start erased (0xff).
func NewEEPROM(capacity int) (*EEPROM, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	mem := make([]byte, capacity)
	for i := range mem {
		mem[i] = 0xff
	}
	return &EEPROM{cells: cells{mem: mem}}, nil
}

// OpenEEPROM maps the file at path as EEPROM contents, creating it when it
// does not exist. A new or short file is padded with erased cells up to
// capacity; a longer file is rejected.
func OpenEEPROM(path string, capacity int) (*EEPROM, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open eeprom file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat eeprom file: %w", err)
	}
	if info.Size() > int64(capacity) {
		f.Close()
		return nil, fmt.Errorf("%w: eeprom file %s is %d bytes (capacity %d)", ErrCapacityExceeded, path, info.Size(), capacity)
	}
	if pad := int64(capacity) - info.Size(); pad > 0 {
		erased := make([]byte, pad)
		for i := range erased {
			erased[i] = 0xff
		}
		if _, err := f.WriteAt(erased, info.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to extend eeprom file: %w", err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map eeprom file: %w", err)
	}

	log.Debug().Str("path", path).Int("capacity", capacity).Msg("Mapped eeprom file")
	return &EEPROM{cells: cells{mem: m}, file: f, mapped: m}, nil
}

func (e *EEPROM) Kind() Kind { return KindEEPROM }

func (e *EEPROM) WriteU8(addr Addr, value uint8) error {
	start, _, err := e.span(addr, 1)
	if err != nil {
		return err
	}
	e.mem[start] = value
	return e.flush()
}

func (e *EEPROM) Store(offset Addr, buf []byte) error {
	if err := e.store(offset, buf); err != nil {
		return err
	}
	log.Debug().Str("offset", offset.String()).Int("size", len(buf)).Msg("Wrote eeprom block")
	return e.flush()
}

func (e *EEPROM) flush() error {
	if e.mapped == nil {
		return nil
	}
	if err := e.mapped.Flush(); err != nil {
		return fmt.Errorf("failed to flush eeprom: %w", err)
	}
	return nil
}

// Close unmaps a file-backed EEPROM. It is a no-op for RAM-backed memory.
func (e *EEPROM) Close() error {
	if e.mapped == nil {
		return nil
	}
	err := e.mapped.Unmap()
	e.mapped = nil
	e.mem = nil
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	return err
}
