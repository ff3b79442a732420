package regtext

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

const runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

var backedUp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func payload(t *testing.T, key, name string, v types.Value) *store.TypedPayload {
	t.Helper()
	p, err := store.NewTypedPayload(key, name, v, backedUp)
	require.NoError(t, err)
	return p
}

func TestExportPayloads_ValueFormats(t *testing.T) {
	tests := []struct {
		name  string
		value types.Value
		want  string
	}{
		{"string", types.StringValue(`"C:\app.exe" --tray`), `"v"="\"C:\\app.exe\" --tray"`},
		{"dword", types.DWordValue(0x2a), `"v"=dword:0000002a`},
		{"qword", types.QWordValue(0x0102030405060708), `"v"=hex(b):08,07,06,05,04,03,02,01`},
		{"binary", types.BinaryValue([]byte{0xde, 0xad}), `"v"=hex:de,ad`},
		{"empty binary", types.BinaryValue(nil), `"v"=hex:`},
		{"expand", types.ExpandStringValue("%A%"), `"v"=hex(2):25,00,41,00,25,00,00,00`},
		{"multi", types.MultiStringValue("a", "b"), `"v"=hex(7):61,00,00,00,62,00,00,00,00,00`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ExportPayloads([]*store.TypedPayload{payload(t, runKey, "v", tt.value)}, Options{Encoding: EncodingUTF8})
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.want+CRLF)
		})
	}
}

func TestExportPayloads_Layout(t *testing.T) {
	services := `HKLM\SYSTEM\CurrentControlSet\Services\Spooler`
	payloads := []*store.TypedPayload{
		payload(t, services, "Start", types.DWordValue(2)),
		payload(t, runKey, "Zeta", types.StringValue("z.exe")),
		payload(t, runKey, "", types.StringValue("default")),
		payload(t, strings.ToLower(runKey), "alpha", types.StringValue("a.exe")),
	}

	out, err := ExportPayloads(payloads, Options{Encoding: EncodingUTF8, Comment: "transaction tx1"})
	require.NoError(t, err)

	want := RegFileHeader + CRLF + CRLF +
		"; transaction tx1" + CRLF + CRLF +
		`[HKEY_CURRENT_USER\Software\Microsoft\Windows\CurrentVersion\Run]` + CRLF +
		`@="default"` + CRLF +
		`"alpha"="a.exe"` + CRLF +
		`"Zeta"="z.exe"` + CRLF + CRLF +
		`[HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Services\Spooler]` + CRLF +
		`"Start"=dword:00000002` + CRLF + CRLF
	assert.Equal(t, want, string(out))
}

func TestExportPayloads_UTF16WithBOM(t *testing.T) {
	out, err := ExportPayloads([]*store.TypedPayload{payload(t, runKey, "App", types.StringValue("ü.exe"))}, Options{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, []byte{0xFF, 0xFE}, out[:2])

	decoded, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), RegFileHeader+CRLF))
	assert.Contains(t, string(decoded), `"App"="ü.exe"`)
}

func TestExportPayloads_Regedit4(t *testing.T) {
	payloads := []*store.TypedPayload{
		payload(t, runKey, "App", types.StringValue("café")),
		payload(t, runKey, "Path", types.ExpandStringValue("%A%")),
		payload(t, runKey, "Snow", types.StringValue("☃")),
	}
	out, err := ExportPayloads(payloads, Options{Encoding: "windows-1252"})
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, Regedit4Header+CRLF))
	assert.Contains(t, text, "\"App\"=\"caf\xe9\"")
	assert.Contains(t, text, `"Path"=hex(2):25,41,25,00`)
	// unrepresentable characters are replaced rather than failing the export
	assert.Contains(t, text, `"Snow"="?"`)
}

func TestExportPayloads_Errors(t *testing.T) {
	_, err := ExportPayloads(nil, Options{Encoding: "EBCDIC"})
	assert.ErrorIs(t, err, errUnsupportedEncoding)

	bad := &store.TypedPayload{KeyPath: `HKXX\Nope`, Kind: types.ValueString}
	_, err = ExportPayloads([]*store.TypedPayload{bad}, Options{Encoding: EncodingUTF8})
	assert.Error(t, err)
}

func TestExportPayloads_Empty(t *testing.T) {
	out, err := ExportPayloads(nil, Options{Encoding: EncodingUTF8})
	require.NoError(t, err)
	assert.Equal(t, RegFileHeader+CRLF+CRLF, string(out))
}
