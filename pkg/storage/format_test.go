package storage

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/indexing"
)

const headerSize = 20 // magic + version + flags + reserved + length + checksum

func TestFileHeader_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeader(&buf, FileHeader{Length: 42, Checksum: 7})
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), headerSize)

	header, err := ReadHeader(&buf)
	require.NoError(t, err)

	assert.Equal(t, MagicBytes, string(header.Magic[:]))
	assert.EqualValues(t, FormatVersion, header.Version)
	assert.Equal(t, uint8(0), header.Flags)
	assert.Equal(t, uint32(42), header.Length)
	assert.Equal(t, uint64(7), header.Checksum)
}

func TestFileHeader_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		header FileHeader
		errMsg string
	}{
		{"invalid magic", FileHeader{Magic: [4]byte{'I', 'N', 'V', 'L'}, Version: FormatVersion}, "invalid file format"},
		{"invalid version", FileHeader{Magic: [4]byte{'G', 'O', 'D', 'B'}, Version: 99}, "unsupported file version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, tt.header))

			_, err := ReadHeader(&buf)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("short buffer", func(t *testing.T) {
		_, err := ReadHeader(bytes.NewReader([]byte{1, 2, 3}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read header")
	})
}

func TestCodecs_RoundTrip(t *testing.T) {
	docs := []domain.Document{
		{"_id": "1", "name": "Alice", "age": float64(30), "tags": []interface{}{"a", "b"}},
		{"_id": "2", "nested": map[string]interface{}{"deep": map[string]interface{}{"ok": true}}, "none": nil},
		// repetitive payloads compress
		{"_id": "3", "blob": strings.Repeat("abcdefgh", 512)},
	}

	for _, format := range []Format{FormatJSON, FormatBinary} {
		t.Run(string(format), func(t *testing.T) {
			c, err := newCodec(format)
			require.NoError(t, err)

			data, err := c.Marshal(docs)
			require.NoError(t, err)

			var raw []map[string]interface{}
			require.NoError(t, c.Unmarshal(data, &raw))
			require.Len(t, raw, len(docs))
			for i := range docs {
				got, err := domain.NormalizeDocument(raw[i])
				require.NoError(t, err)
				assert.Equal(t, docs[i], got)
			}

			entries := []indexing.Entry{{Key: `["a"]`, IDs: []string{"1", "2"}}}
			data, err = c.Marshal(entries)
			require.NoError(t, err)
			var decoded []indexing.Entry
			require.NoError(t, c.Unmarshal(data, &decoded))
			assert.Equal(t, entries, decoded)
		})
	}

	_, err := newCodec("yaml")
	assert.Error(t, err)
}

func TestBinaryCodec_Compression(t *testing.T) {
	c := binaryCodec{}

	compressible := []domain.Document{{"blob": strings.Repeat("x", 4096)}}
	data, err := c.Marshal(compressible)
	require.NoError(t, err)
	header, err := ReadHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Zero(t, header.Flags&flagRaw)
	assert.Less(t, len(data), 4096)

	tiny := []domain.Document{{"a": "b"}}
	data, err = c.Marshal(tiny)
	require.NoError(t, err)
	header, err = ReadHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotZero(t, header.Flags&flagRaw, "payloads lz4 cannot shrink are stored raw")
	assert.Equal(t, int(header.Length), len(data)-headerSize)
}

func TestBinaryCodec_ChecksumMismatch(t *testing.T) {
	c := binaryCodec{}
	data, err := c.Marshal([]domain.Document{{"name": "Alice"}})
	require.NoError(t, err)

	data[len(data)-1] ^= 0xff

	var out []map[string]interface{}
	err = c.Unmarshal(data, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}
