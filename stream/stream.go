// Package stream serializes material data to the byte layout shared by
// recordings and connected clients. Encoders append to caller-owned
// buffers and decoders walk a buffer while tracking an offset, so a bad
// stream reports where it went bad. All multi-byte fields are
// little-endian, matching the material wire helpers.
//
// Two record kinds exist. Action records are bare tag-plus-payload runs
// whose count travels out of band, used for per-contact deltas. A
// catalog is a self-describing snapshot of a whole registry: every
// material with its label, condition trees, and replicated actions,
// with sound and material references reduced to ids.
package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/milk9111/matter/material"
)

// SoundTable resolves sound ids while decoding a catalog. The material
// half of the reference table is the catalog being decoded.
type SoundTable interface {
	SoundByID(id uint32) (material.SoundRef, error)
}

// Encoder appends wire records to a caller-owned buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder wraps buf, which may be nil. Appends grow it the usual way.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Bytes returns everything encoded so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the encoded length in bytes.
func (e *Encoder) Len() int { return len(e.buf) }

// AppendAction appends one action record. Callbacks have no wire form
// and fail; filter with material.Replicated when encoding mixed lists.
func (e *Encoder) AppendAction(a material.Action) error {
	buf, err := material.AppendFlatten(e.buf, a)
	if err != nil {
		return fmt.Errorf("stream: offset %d: %w", len(e.buf), err)
	}
	e.buf = buf
	return nil
}

// AppendCatalog appends a snapshot of every material in reg, in
// registration order. Per material: id, label, then a length-prefixed
// component block holding each component's condition tree behind a
// presence byte and its replicated actions behind a count. Callback
// actions are host-local and are silently left out.
func (e *Encoder) AppendCatalog(reg *material.Registry) error {
	mats := reg.All()
	e.buf = appendU32(e.buf, uint32(len(mats)))
	for _, m := range mats {
		blob, err := appendComponents(nil, m)
		if err != nil {
			return fmt.Errorf("stream: material %q: %w", m.Label(), err)
		}
		e.buf = appendU32(e.buf, m.ID())
		e.buf = appendU32(e.buf, uint32(len(m.Label())))
		e.buf = append(e.buf, m.Label()...)
		e.buf = appendU32(e.buf, uint32(len(blob)))
		e.buf = append(e.buf, blob...)
	}
	return nil
}

func appendComponents(buf []byte, m *material.Material) ([]byte, error) {
	comps := m.Components()
	buf = appendU32(buf, uint32(len(comps)))
	for _, c := range comps {
		if c.Conditions != nil {
			buf = append(buf, 1)
			buf = material.AppendFlattenConditions(buf, c.Conditions)
		} else {
			buf = append(buf, 0)
		}
		replicated := 0
		for _, a := range c.Actions {
			if material.Replicated(a) {
				replicated++
			}
		}
		buf = appendU32(buf, uint32(replicated))
		for _, a := range c.Actions {
			if !material.Replicated(a) {
				continue
			}
			var err error
			buf, err = material.AppendFlatten(buf, a)
			if err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

// Decoder consumes wire records from the front of a buffer.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps buf without copying it.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Offset returns how many bytes have been consumed.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns how many bytes are left.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// ReadAction decodes one action record. An unknown tag or a dangling
// sound id means the stream and this build disagree; the error carries
// the offset and the decoder must not be used past it.
func (d *Decoder) ReadAction(refs material.RefTable) (material.Action, error) {
	a, n, err := material.RestoreAction(d.buf[d.off:], refs)
	if err != nil {
		return nil, d.fail(err)
	}
	d.off += n
	return a, nil
}

// ReadCatalog decodes a catalog into reg, which should be empty.
// Material ids in the stream are the sender's; each label is
// re-registered locally and condition references are remapped to the
// fresh materials, so the sender's numbering never leaks into reg.
func (d *Decoder) ReadCatalog(reg *material.Registry, sounds SoundTable) error {
	count, err := d.readU32()
	if err != nil {
		return err
	}
	refs := &catalogRefs{
		mats:   make(map[uint32]*material.Material, count),
		sounds: sounds,
	}
	type entry struct {
		mat  *material.Material
		blob []byte
		base int
	}
	// Materials register in a first pass so condition trees in the
	// second can reference any of them, later ones included.
	entries := make([]entry, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := d.readU32()
		if err != nil {
			return err
		}
		label, err := d.readString()
		if err != nil {
			return err
		}
		base := d.off + 4
		blob, err := d.readBlob()
		if err != nil {
			return err
		}
		m, err := reg.New(label)
		if err != nil {
			return d.fail(err)
		}
		refs.mats[id] = m
		entries = append(entries, entry{mat: m, blob: blob, base: base})
	}
	for _, ent := range entries {
		if err := restoreComponents(ent.mat, ent.blob, ent.base, refs); err != nil {
			return err
		}
	}
	return nil
}

func restoreComponents(m *material.Material, blob []byte, base int, refs material.RefTable) error {
	off := 0
	fail := func(err error) error {
		return fmt.Errorf("stream: offset %d: %w", base+off, err)
	}
	if len(blob) < 4 {
		return fail(material.ErrShortBuffer)
	}
	count := binary.LittleEndian.Uint32(blob)
	off = 4
	for i := uint32(0); i < count; i++ {
		c := &material.Component{}
		if off >= len(blob) {
			return fail(material.ErrShortBuffer)
		}
		flag := blob[off]
		switch flag {
		case 0:
			off++
		case 1:
			off++
			cond, n, err := material.RestoreConditions(blob[off:], refs)
			if err != nil {
				return fail(err)
			}
			c.Conditions = cond
			off += n
		default:
			return fmt.Errorf("stream: offset %d: condition flag %d", base+off, flag)
		}
		if off+4 > len(blob) {
			return fail(material.ErrShortBuffer)
		}
		actions := binary.LittleEndian.Uint32(blob[off:])
		off += 4
		for j := uint32(0); j < actions; j++ {
			a, n, err := material.RestoreAction(blob[off:], refs)
			if err != nil {
				return fail(err)
			}
			c.Actions = append(c.Actions, a)
			off += n
		}
		m.AddComponent(c)
	}
	if off != len(blob) {
		return fmt.Errorf("stream: material %q: %d trailing bytes in component block", m.Label(), len(blob)-off)
	}
	return nil
}

// catalogRefs resolves ids during catalog decode: materials from the
// catalog's own remap table, sounds from the caller's table.
type catalogRefs struct {
	mats   map[uint32]*material.Material
	sounds SoundTable
}

func (r *catalogRefs) MaterialByID(id uint32) (*material.Material, error) {
	m, ok := r.mats[id]
	if !ok {
		return nil, fmt.Errorf("material id %d: %w", id, material.ErrNotFound)
	}
	return m, nil
}

func (r *catalogRefs) SoundByID(id uint32) (material.SoundRef, error) {
	return r.sounds.SoundByID(id)
}

func (d *Decoder) fail(err error) error {
	return fmt.Errorf("stream: offset %d: %w", d.off, err)
}

func (d *Decoder) readU32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, d.fail(material.ErrShortBuffer)
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *Decoder) readString() (string, error) {
	n, err := d.readU32()
	if err != nil {
		return "", err
	}
	if uint32(d.Remaining()) < n {
		return "", d.fail(material.ErrShortBuffer)
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *Decoder) readBlob() ([]byte, error) {
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if uint32(d.Remaining()) < n {
		return nil, d.fail(material.ErrShortBuffer)
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

func appendU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}
