package persistence

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/denizumutdereli/stdpcore/pkg/engine"
)

// Binary format constants
const (
	MagicBytes    = "STDP"
	FormatVersion = 1
)

// Header for binary format
type Header struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint16
	RunIDLen uint32
	DataLen  uint64
	Checksum uint32
}

const headerSize = 24

const (
	FlagCompressed uint16 = 1 << 0
)

// Snapshot is the persisted state of one simulated core at the end of a
// dispatch.
type Snapshot struct {
	RunID   string        `msgpack:"run_id"`
	CoreID  int           `msgpack:"core_id"`
	SavedAt int64         `msgpack:"saved_at"`
	State   *engine.State `msgpack:"state"`
}

// NewSnapshot captures p as core coreID of run runID.
func NewSnapshot(runID string, coreID int, p *engine.Processor) *Snapshot {
	return &Snapshot{
		RunID:   runID,
		CoreID:  coreID,
		SavedAt: time.Now().Unix(),
		State:   p.State(),
	}
}

// Codec handles encoding/decoding of snapshots
type Codec struct {
	compress  bool
	compLevel int
}

// NewCodec creates a new codec
func NewCodec(compress bool) *Codec {
	return &Codec{
		compress:  compress,
		compLevel: gzip.BestSpeed,
	}
}

// Encode serializes a snapshot to binary format
func (c *Codec) Encode(snap *Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, err
	}

	// Only keep the compressed form when it is actually smaller.
	var flags uint16
	if c.compress {
		compressed, err := c.compressData(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			data = compressed
			flags |= FlagCompressed
		}
	}

	header := Header{
		Version:  FormatVersion,
		Flags:    flags,
		RunIDLen: uint32(len(snap.RunID)),
		DataLen:  uint64(len(data)),
		Checksum: crc32.ChecksumIEEE(data),
	}
	copy(header.Magic[:], MagicBytes)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(snap.RunID); err != nil {
		return nil, err
	}
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode deserializes binary format to a snapshot
func (c *Codec) Decode(raw []byte) (*Snapshot, error) {
	if len(raw) < headerSize {
		return nil, errors.New("data too short")
	}

	buf := bytes.NewReader(raw)

	var header Header
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, errors.New("invalid magic bytes")
	}
	if header.Version > FormatVersion {
		return nil, errors.New("unsupported format version")
	}

	runID := make([]byte, header.RunIDLen)
	if _, err := io.ReadFull(buf, runID); err != nil {
		return nil, err
	}

	data := make([]byte, header.DataLen)
	if _, err := io.ReadFull(buf, data); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(data) != header.Checksum {
		return nil, errors.New("checksum mismatch")
	}

	if header.Flags&FlagCompressed != 0 {
		decompressed, err := c.decompressData(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.RunID != string(runID) {
		return nil, errors.New("run id in header does not match payload")
	}

	return &snap, nil
}

// compressData compresses using gzip
func (c *Codec) compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.compLevel)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decompressData decompresses gzip data
func (c *Codec) decompressData(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
