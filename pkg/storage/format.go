package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "GODB"
	// Current version
	FormatVersion = 2
	// File extension for our binary format
	FileExtension = ".godb"

	// flagRaw marks a payload stored without compression (lz4 could not shrink it)
	flagRaw uint8 = 1 << 0
)

// FileHeader represents the header of a binary snapshot
type FileHeader struct {
	Magic    [4]byte // "GODB"
	Version  uint8   // Format version
	Flags    uint8
	Reserved [2]byte // Reserved for future use
	Length   uint32  // Uncompressed payload length
	Checksum uint64  // xxhash64 of the stored payload
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, header FileHeader) error {
	header.Magic = [4]byte{'G', 'O', 'D', 'B'}
	header.Version = FormatVersion
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate magic bytes
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	// Validate version
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// codec turns snapshot values into bytes and back
type codec interface {
	Extension() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

func newCodec(format Format) (codec, error) {
	switch format {
	case FormatJSON, "":
		return jsonCodec{}, nil
	case FormatBinary:
		return binaryCodec{}, nil
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

type jsonCodec struct{}

func (jsonCodec) Extension() string { return ".json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

type binaryCodec struct{}

func (binaryCodec) Extension() string { return FileExtension }

func (binaryCodec) Marshal(v interface{}) ([]byte, error) {
	msgpackData, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	header := FileHeader{Length: uint32(len(msgpackData))}
	payload := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, payload, hashTable[:])
	if err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if n == 0 || n >= len(msgpackData) {
		payload = msgpackData
		header.Flags |= flagRaw
	} else {
		payload = payload[:n]
	}
	header.Checksum = xxhash.Sum64(payload)

	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func (binaryCodec) Unmarshal(data []byte, v interface{}) error {
	reader := bytes.NewReader(data)
	header, err := ReadHeader(reader)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	payload := data[len(data)-reader.Len():]
	if sum := xxhash.Sum64(payload); sum != header.Checksum {
		return fmt.Errorf("checksum mismatch: stored %x, computed %x", header.Checksum, sum)
	}

	decoded := payload
	if header.Flags&flagRaw == 0 {
		decoded = make([]byte, header.Length)
		n, err := lz4.UncompressBlock(payload, decoded)
		if err != nil {
			return fmt.Errorf("failed to decompress data: %w", err)
		}
		decoded = decoded[:n]
	}
	if err := msgpack.Unmarshal(decoded, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return nil
}
