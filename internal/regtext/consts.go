package regtext

const (
	// ============================================================================
	// .reg File Format Tokens
	// ============================================================================

	// RegFileHeader is the header line for Unicode .reg files (regedit 5).
	RegFileHeader = "Windows Registry Editor Version 5.00"

	// Regedit4Header is the header line for ANSI .reg files.
	Regedit4Header = "REGEDIT4"

	// ============================================================================
	// Delimiters and Structural Tokens
	// ============================================================================

	// KeyOpenBracket marks the start of a registry key path
	KeyOpenBracket = "["

	// KeyCloseBracket marks the end of a registry key path
	KeyCloseBracket = "]"

	// ValueAssignment separates value names from their data
	ValueAssignment = "="

	// DefaultValuePrefix marks the default (unnamed) value
	DefaultValuePrefix = "@="

	// CommentPrefix marks a comment line
	CommentPrefix = ";"

	// ============================================================================
	// Quote and Escape Characters
	// ============================================================================

	// Quote is the double-quote character for value names and string data
	Quote = "\""

	// Backslash is used for escaping and path separators
	Backslash = "\\"

	// EscapedQuote is the escaped double-quote sequence
	EscapedQuote = "\\\""

	// EscapedBackslash is the escaped backslash sequence
	EscapedBackslash = "\\\\"

	// CRLF is the Windows line ending (carriage return + line feed)
	CRLF = "\r\n"

	// ============================================================================
	// Value Type Prefixes
	// ============================================================================

	// DWORDPrefix identifies a DWORD value in .reg format
	DWORDPrefix = "dword:"

	// HexPrefix identifies binary data in .reg format
	HexPrefix = "hex:"

	// HexExpandSZPrefix identifies REG_EXPAND_SZ values (type 2)
	HexExpandSZPrefix = "hex(2):"

	// HexMultiSZPrefix identifies REG_MULTI_SZ values (type 7)
	HexMultiSZPrefix = "hex(7):"

	// HexQWORDPrefix identifies REG_QWORD values (type b)
	HexQWORDPrefix = "hex(b):"

	// ============================================================================
	// Encoding Names
	// ============================================================================

	// EncodingUTF16LE is regedit's native export encoding (with BOM).
	EncodingUTF16LE = "UTF-16LE"

	// EncodingUTF8 writes the version 5 format as UTF-8 without BOM.
	EncodingUTF8 = "UTF-8"

	// EncodingWindows1252 writes the REGEDIT4 format in the Western ANSI code page.
	EncodingWindows1252 = "WINDOWS-1252"

	// ============================================================================
	// Hex Data Formatting
	// ============================================================================

	// HexByteSeparator separates bytes in hex data
	HexByteSeparator = ","

	// HexByteFormat is the format string for a single hex byte
	HexByteFormat = "%02x"

	// DWORDHexFormat is the format string for DWORD values (8 hex digits)
	DWORDHexFormat = "%08x"

	// UTF16CodeUnitSize is the size of a UTF-16 code unit in bytes
	UTF16CodeUnitSize = 2
)
