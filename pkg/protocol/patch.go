package protocol

import (
	"fmt"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ID names a node on the wire. IDs are allocated by the sending side and
// never reused within a stream. RootID is the mount container every stream
// starts with.
type ID uint64

// RootID is the implicit container node.
const RootID ID = 0

// Patch is one reconcile.Mutation with handles replaced by IDs. Op values
// are the reconcile.Op values.
type Patch struct {
	Op     reconcile.Op
	ID     ID         // Target, or the new node for OpCreate
	Parent ID         // For OpCreate
	Before ID         // For OpCreate and OpMove; RootID = append
	Kind   vdom.VKind // For OpCreate
	Tag    string     // For OpCreate of an element
	Attrs  vdom.Attrs // For OpCreate of an element
	Name   string     // Attribute name
	Value  string     // Attribute value, or text for OpCreate/OpSetText
}

// String formats the patch for logs.
func (p Patch) String() string {
	switch p.Op {
	case reconcile.OpCreate:
		what := "#text"
		if p.Kind == vdom.KindElement {
			what = "<" + p.Tag + ">"
		}
		return fmt.Sprintf("Create %s #%d parent=#%d before=#%d", what, p.ID, p.Parent, p.Before)
	case reconcile.OpMove:
		return fmt.Sprintf("Move #%d before=#%d", p.ID, p.Before)
	case reconcile.OpSetAttribute:
		return fmt.Sprintf("SetAttribute #%d %s=%q", p.ID, p.Name, p.Value)
	case reconcile.OpClearAttribute:
		return fmt.Sprintf("ClearAttribute #%d %s", p.ID, p.Name)
	case reconcile.OpSetText:
		return fmt.Sprintf("SetText #%d %q", p.ID, p.Value)
	default:
		return fmt.Sprintf("%s #%d", p.Op, p.ID)
	}
}

// PatchesFrame is a batch of patches with a sequence number. Sequence
// numbers start at 1 and increase by one per flushed batch; a sync frame
// carries the sequence number of the last batch it includes.
type PatchesFrame struct {
	Seq     uint64
	Patches []Patch
}

// EncodePatches encodes a patches frame payload.
func EncodePatches(pf *PatchesFrame) []byte {
	e := NewEncoder()
	EncodePatchesTo(e, pf)
	return e.Bytes()
}

// EncodePatchesTo encodes a patches frame payload using the provided
// encoder.
func EncodePatchesTo(e *Encoder, pf *PatchesFrame) {
	e.WriteUvarint(pf.Seq)
	e.WriteUvarint(uint64(len(pf.Patches)))
	for i := range pf.Patches {
		encodePatch(e, &pf.Patches[i])
	}
}

// encodePatch writes the op, the target ID, then the op's fields:
//
//	Create:         parent, before, kind, tag + attrs | text
//	Remove:         -
//	Move:           before
//	SetAttribute:   name, value
//	ClearAttribute: name
//	SetText:        value
func encodePatch(e *Encoder, p *Patch) {
	e.WriteByte(byte(p.Op))
	e.WriteUvarint(uint64(p.ID))

	switch p.Op {
	case reconcile.OpCreate:
		e.WriteUvarint(uint64(p.Parent))
		e.WriteUvarint(uint64(p.Before))
		e.WriteByte(byte(p.Kind))
		if p.Kind == vdom.KindElement {
			e.WriteString(p.Tag)
			e.WriteUvarint(uint64(len(p.Attrs)))
			for _, a := range p.Attrs {
				e.WriteString(a.Name)
				e.WriteString(a.Value)
			}
		} else {
			e.WriteString(p.Value)
		}
	case reconcile.OpMove:
		e.WriteUvarint(uint64(p.Before))
	case reconcile.OpSetAttribute:
		e.WriteString(p.Name)
		e.WriteString(p.Value)
	case reconcile.OpClearAttribute:
		e.WriteString(p.Name)
	case reconcile.OpSetText:
		e.WriteString(p.Value)
	}
}

// DecodePatches decodes a patches frame payload. Failures are E020 errors
// wrapping the underlying decode error.
func DecodePatches(data []byte) (*PatchesFrame, error) {
	d := NewDecoder(data)
	pf, err := DecodePatchesFrom(d)
	if err == nil && !d.EOF() {
		err = ErrTrailingBytes
	}
	if err != nil {
		return nil, errors.New("E020").Wrap(err)
	}
	return pf, nil
}

// DecodePatchesFrom decodes a patches frame payload from a decoder.
func DecodePatchesFrom(d *Decoder) (*PatchesFrame, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	pf := &PatchesFrame{Seq: seq, Patches: make([]Patch, count)}
	for i := range pf.Patches {
		if err := decodePatch(d, &pf.Patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return pf, nil
}

func decodePatch(d *Decoder, p *Patch) error {
	op, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = reconcile.Op(op)
	if p.ID, err = readID(d); err != nil {
		return err
	}

	switch p.Op {
	case reconcile.OpCreate:
		return decodeCreate(d, p)
	case reconcile.OpRemove:
		return nil
	case reconcile.OpMove:
		p.Before, err = readID(d)
		return err
	case reconcile.OpSetAttribute:
		if p.Name, err = d.ReadString(); err != nil {
			return err
		}
		p.Value, err = d.ReadString()
		return err
	case reconcile.OpClearAttribute:
		p.Name, err = d.ReadString()
		return err
	case reconcile.OpSetText:
		p.Value, err = d.ReadString()
		return err
	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidPatchOp, op)
	}
}

func decodeCreate(d *Decoder, p *Patch) error {
	var err error
	if p.Parent, err = readID(d); err != nil {
		return err
	}
	if p.Before, err = readID(d); err != nil {
		return err
	}
	kind, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Kind = vdom.VKind(kind)

	switch p.Kind {
	case vdom.KindText:
		p.Value, err = d.ReadString()
		return err
	case vdom.KindElement:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidNodeKind, kind)
	}

	if p.Tag, err = d.ReadString(); err != nil {
		return err
	}
	n, err := d.ReadCollectionCount()
	if err != nil {
		return err
	}
	if n > 0 {
		p.Attrs = make(vdom.Attrs, n)
	}
	for i := range p.Attrs {
		if p.Attrs[i].Name, err = d.ReadString(); err != nil {
			return err
		}
		if p.Attrs[i].Value, err = d.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

func readID(d *Decoder) (ID, error) {
	v, err := d.ReadUvarint()
	return ID(v), err
}
