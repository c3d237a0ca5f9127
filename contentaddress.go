package modelpart

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// ContentAddresser is the interface describing an entity that provides its own
// representation for hashing its defining content. Entities with equal content
// addresses are considered structurally identical.
//
// Note: content addresses are compared within a single process only, but they
// are still expected to be stable as the software evolves.
type ContentAddresser interface {
	ContentAddress(h hash.Hash) error
}

// ContentAddress returns an EntityHash for the given entity, computed by its
// ContentAddress method.
func ContentAddress(x ContentAddresser) (EntityHash, error) {
	h := sha1.New()
	if err := x.ContentAddress(h); err != nil {
		return EntityHash{}, err
	}
	return EntityHash(h.Sum(nil)), nil
}

func MustContentAddress(x ContentAddresser) EntityHash {
	h, err := ContentAddress(x)
	if err != nil {
		panic(fmt.Sprintf("modelpart: un-hashable entity (type %T): %v", x, err))
	}
	return h
}

// ContentAddress writes the defining content of the object: its kind, its type
// name and the ordered ids of its nodes. Annotations, properties and the
// object's own id are deliberately excluded.
func (g *GeometricalObject) ContentAddress(h hash.Hash) error {
	writeConnectivity(h, g.kind, g.typeName, g.NodeIDs())
	return nil
}

// connectivityAddress computes the content address an object with the given
// defining content would have, without creating it.
func connectivityAddress(kind Kind, typeName string, nodeIDs []int) EntityHash {
	h := sha1.New()
	writeConnectivity(h, kind, typeName, nodeIDs)
	return EntityHash(h.Sum(nil))
}

func writeConnectivity(h hash.Hash, kind Kind, typeName string, nodeIDs []int) {
	h.Write([]byte{byte(kind)})
	// the type name is length-prefixed so that it cannot bleed into the node ids
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(len(typeName)))
	h.Write(buf[:n])
	h.Write([]byte(typeName))
	// int is variable-size based on the architecture it is compiled for, so to be
	// consistent across architectures we encode ids as 64-bit varints
	for _, id := range nodeIDs {
		n := binary.PutVarint(buf, int64(id))
		h.Write(buf[:n])
	}
}

// EntityHash is a consistent hash (i.e., content address) over the defining
// content of an element or condition. It is independent of the id assigned to
// the entity in a tree, so it identifies the same connectivity across trees.
type EntityHash contentAddress

func (h EntityHash) MarshalText() ([]byte, error)     { return contentAddress(h).MarshalText() }
func (h *EntityHash) UnmarshalText(text []byte) error { return (*contentAddress)(h).UnmarshalText(text) }
func (h EntityHash) String() string                   { return "entity(" + contentAddress(h).String() + ")" }
func (h EntityHash) IsZero() bool                     { return contentAddress(h).IsZero() }

// contentAddress is a consistent hash primitive serving as the base for strongly
// typed hashes.
type contentAddress [sha1.Size]byte

func (h contentAddress) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(text, h[:]) // always returns hex.EncodedLen(len(h)) (see hex.Encode)
	return text, nil
}

func (h *contentAddress) UnmarshalText(text []byte) error {
	n, err := hex.Decode(h[:], text)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if n != len(h) { // always n <= len(h[:]) (see hex.Decode)
		return fmt.Errorf("not enough bytes: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

func (h contentAddress) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value of the type.
func (h contentAddress) IsZero() bool {
	return h == contentAddress{}
}
