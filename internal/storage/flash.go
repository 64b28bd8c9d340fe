package storage

import "github.com/rs/zerolog/log"

// Flash is read-only code memory. The image is programmed into it with Store,
// the way a part is flashed before boot; byte writes from the running VM are
// accepted and ignored.
type Flash struct {
	cells
}

// NewFlash creates an erased (0xff) flash memory of the given capacity.
func NewFlash(capacity int) (*Flash, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	mem := make([]byte, capacity)
	for i := range mem {
		mem[i] = 0xff
	}
	return &Flash{cells{mem: mem}}, nil
}

func (f *Flash) Kind() Kind { return KindFlash }

// WriteU8 has no effect on flash.
func (f *Flash) WriteU8(addr Addr, value uint8) error {
	return nil
}

func (f *Flash) Store(offset Addr, buf []byte) error {
	if err := f.store(offset, buf); err != nil {
		return err
	}
	log.Debug().Str("offset", offset.String()).Int("size", len(buf)).Msg("Programmed flash")
	return nil
}

func (f *Flash) Close() error { return nil }
