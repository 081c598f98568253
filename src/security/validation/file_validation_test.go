package validation

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justaszie/spending-tracker/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("text/csv"))
	assert.NoError(t, ValidateClientContentType("Text/CSV; charset=utf-8"))
	assert.NoError(t, ValidateClientContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Error(t, ValidateClientContentType("application/x-msdownload"))
	assert.Error(t, ValidateClientContentType(""))
}

func TestValidateFileContentCSV(t *testing.T) {
	file := bytes.NewReader([]byte("Data,Suma,Valiuta\n2024-04-02,15.90,EUR\n"))

	detected, err := ValidateFileContentByMagicBytes(file)
	require.NoError(t, err)
	assert.Contains(t, []string{"text/plain", "text/csv"}, detected)

	// The reader must be rewound for the parser.
	pos, err := file.Seek(0, 1)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestValidateFileContentXLSX(t *testing.T) {
	file := bytes.NewReader(append([]byte{0x50, 0x4b, 0x03, 0x04}, make([]byte, 100)...))

	detected, err := ValidateFileContentByMagicBytes(file)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", detected)
}

func TestValidateFileContentRejectsBinaries(t *testing.T) {
	// ELF header.
	file := bytes.NewReader(append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 100)...))

	_, err := ValidateFileContentByMagicBytes(file)
	require.Error(t, err)
}
