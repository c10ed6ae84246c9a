// Package dist implements the portable form of compiled Spacey bytecode.
// A chunk is encoded as canonical CBOR together with a format version and
// the SHA-256 of its body, so encoded chunks can be written to disk, cached,
// and loaded into another VM without recompiling the source.
package dist

// FormatVersion is the version of the encoded chunk layout. Decoding a
// chunk written with a different version fails.
const FormatVersion uint16 = 1

// ConstTag identifies the kind of a constant-pool record.
type ConstTag uint8

const (
	ConstUndefined ConstTag = 1
	ConstNull      ConstTag = 2
	ConstBool      ConstTag = 3
	ConstNumber    ConstTag = 4
	ConstString    ConstTag = 5
	ConstBigInt    ConstTag = 6
	ConstTemplate  ConstTag = 7
)

// Envelope is the top-level record. Body holds the canonical encoding of a
// ChunkRecord and Hash is its SHA-256.
type Envelope struct {
	Version uint16   `cbor:"1,keyasint"`
	Hash    [32]byte `cbor:"2,keyasint"`
	Body    []byte   `cbor:"3,keyasint"`
}

// InstructionRecord is one encoded instruction.
type InstructionRecord struct {
	_       struct{} `cbor:",toarray"`
	Op      uint8
	Operand int32
}

// HandlerRecord is one exception-table entry.
type HandlerRecord struct {
	_      struct{} `cbor:",toarray"`
	Start  int
	End    int
	Target int
}

// GlobalRecord is a top-level declaration.
type GlobalRecord struct {
	_    struct{} `cbor:",toarray"`
	Name string
	Kind uint8
}

// ConstRecord is one tagged constant. Only the field matching Tag is set.
// Numbers travel as their IEEE-754 bits so NaN and negative zero survive.
type ConstRecord struct {
	Tag      ConstTag        `cbor:"1,keyasint"`
	Bool     bool            `cbor:"2,keyasint,omitempty"`
	Bits     uint64          `cbor:"3,keyasint,omitempty"`
	Str      string          `cbor:"4,keyasint,omitempty"`
	Template *TemplateRecord `cbor:"5,keyasint,omitempty"`
}

// UpvalueRecord describes one captured variable of a template.
type UpvalueRecord struct {
	_         struct{} `cbor:",toarray"`
	FromLocal bool
	Index     uint16
	Name      string
}

// TemplateRecord is an encoded function template. Its chunk is nested.
type TemplateRecord struct {
	Name          string          `cbor:"1,keyasint"`
	Kind          uint8           `cbor:"2,keyasint"`
	NumParams     int             `cbor:"3,keyasint"`
	RestIndex     int             `cbor:"4,keyasint"`
	Chunk         *ChunkRecord    `cbor:"5,keyasint"`
	Upvalues      []UpvalueRecord `cbor:"6,keyasint,omitempty"`
	UsesArguments bool            `cbor:"7,keyasint,omitempty"`
	Source        string          `cbor:"8,keyasint,omitempty"`
}

// ChunkRecord is the encoded form of one vm.Chunk.
type ChunkRecord struct {
	Name         string              `cbor:"1,keyasint"`
	Instructions []InstructionRecord `cbor:"2,keyasint"`
	Constants    []ConstRecord       `cbor:"3,keyasint,omitempty"`
	Lines        []int               `cbor:"4,keyasint,omitempty"`
	Handlers     []HandlerRecord     `cbor:"5,keyasint,omitempty"`
	NumLocals    int                 `cbor:"6,keyasint,omitempty"`
	NumUpvalues  int                 `cbor:"7,keyasint,omitempty"`
	Globals      []GlobalRecord      `cbor:"8,keyasint,omitempty"`
	LocalNames   []string            `cbor:"9,keyasint,omitempty"`
}
